// Package imaging decodes chat screenshots and turns them into rasters an OCR
// engine reads well.
//
// Prepare is the preprocessing entry point. It applies, in a fixed order,
// BT.601 grayscale conversion, an upscale, a 3x3 median denoise, a contrast
// boost and a binarization pass whose cut is either fixed or chosen with
// Otsu's method. Options are validated before any pixel is read and the input
// image is never modified.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner. Rectangles
// follow image.Rectangle: Min is inclusive, Max is exclusive. Every raster
// returned by this package has its origin at (0,0).
//
// # Color Analysis
//
// EstimateBackground reports the dominant border colour and its CIE L*
// lightness so callers can tell dark-mode captures (light text on dark) from
// light-mode ones. DominantColors quantizes to 16 levels per channel.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// and may run concurrently on the same source image.
package imaging
