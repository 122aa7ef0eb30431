// Package detection locates candidate text regions in chat screenshots.
//
// Chat captures are made of message bubbles separated by background gaps. The
// detector binarizes the image at its Otsu level, treating the class that is
// not the border colour as ink, then builds ink-density profiles:
//
//  1. The row profile splits the image into horizontal bands wherever a run
//     of empty rows is at least Config.MinRowGap long.
//  2. Each band's column profile splits it again on runs of at least
//     Config.MinColumnGap empty columns, so side-by-side blocks stay apart.
//  3. Every piece is shrunk to its tight ink box, filtered by area, height
//     and aspect ratio, grown by Config.Margin and clamped to the image.
//
// A row or column "is empty" when its ink fraction is at or below
// Config.NoiseDensity.
//
// # Ordering
//
// Regions are returned sorted by Y, then X, with ties kept in discovery
// order. Callers concatenate recognized text in this order, so the output of
// Detect is stable for a given image and Config.
//
// # Overlap
//
// Margins can make neighbouring regions overlap. Overlapping regions are kept
// as separate entries; nothing is merged or deduplicated.
//
// # Coordinate System
//
// Region coordinates are in the source image's space, including a non-zero
// bounds origin. Width and Height are exclusive extents, as in
// image.Rectangle.
package detection
