package imaging

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder (Android screenshots)

	"github.com/ironsheep/chatscan/internal/faults"
)

// Depth names the channel depth of a raster.
type Depth string

const (
	DepthGray Depth = "gray"
	DepthRGB  Depth = "rgb"
)

// DepthOf reports whether img carries one luminance channel or colour.
func DepthOf(img image.Image) Depth {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return DepthGray
	default:
		return DepthRGB
	}
}

// Decode reads a screenshot from r.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are accepted. EXIF orientation is applied
// so phone photos of screens come out upright. Anything that cannot be decoded,
// and images with zero area, fail with faults.ErrUnsupportedImage.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, faults.UnsupportedImage(err)
	}
	if img.Bounds().Empty() {
		return nil, faults.UnsupportedImage(fmt.Errorf("image has zero area"))
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, faults.UnsupportedImage(fmt.Errorf("empty input"))
	}
	return Decode(bytes.NewReader(data))
}

// ImageCache keeps decoded images keyed by file path so repeated tool calls on
// the same screenshot skip disk I/O and decoding.
//
// ImageCache is safe for concurrent use. Entries stay until Evict or Clear.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load returns the cached image for path, reading and decoding it on first use.
//
// Open failures are returned as plain I/O errors; decode failures carry
// faults.ErrUnsupportedImage.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict drops the image cached for path, if any.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo describes a screenshot file.
type ImageInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	Depth         Depth  `json:"depth"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// LoadImageInfo loads path through cache and reports its metadata.
//
// Format comes from the file's magic bytes as recognized by image.DecodeConfig,
// not from the extension.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := os.Open(path); err == nil {
		if _, name, err := image.DecodeConfig(f); err == nil {
			format = name
		}
		f.Close()
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		Depth:         DepthOf(img),
		FileSizeBytes: stat.Size(),
	}, nil
}
