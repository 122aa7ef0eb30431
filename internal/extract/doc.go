// Package extract turns a chat screenshot into an ExtractionResult.
//
// An Extractor detects text regions, crops and prepares each one for OCR,
// recognizes the regions on a bounded worker pool and joins their text in
// reading order (top-to-bottom, then left-to-right). The joined raw text is
// normalized with script.Normalize and scanned by a FieldSet for phone
// numbers, e-mail addresses, links and money amounts.
//
// Per-region recognition failures and timeouts never fail an extraction:
// the region contributes an empty Fragment carrying the error, and a warning
// is logged. Only invalid configuration, undecodable input and cancellation
// are returned as errors.
//
// Result is the stable record consumed downstream:
//
//	{"raw_text": "...", "clean_text": "...", "extracted_fields": {"phones": [...], ...}}
package extract
