// Package script normalizes mixed Latin and Arabic-script text produced by OCR.
//
// Renderers and OCR engines disagree on how Arabic and Urdu letters are
// encoded: some emit the contextual presentation forms (isolated, initial,
// medial and final glyph code points) instead of the base letters, and most
// Urdu text uses Extended Arabic-Indic digits. Normalize folds both back to a
// canonical form so that keyword search and ASCII digit patterns work no matter
// which shaping engine produced the screenshot.
//
// # Tables
//
// The mappings live in tables.go as plain data:
//   - arabicFormsB: every shaped letter and lam-alef ligature of U+FE70–U+FEFC
//   - arabicFormsA: the Urdu, Persian and Sindhi letters of U+FB50–U+FBFF
//   - digits: U+0660–U+0669 and U+06F0–U+06F9 plus the Arabic separators
//
// Code points in the presentation-form blocks that the tables do not list are
// folded with NFKC. Nothing outside those blocks is compatibility-folded, so
// Latin ligatures, fullwidth forms and superscripts pass through unchanged.
package script
