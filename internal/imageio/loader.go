// Package imageio finds, decodes and resizes the images of one batch.
package imageio

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}

// LoadError reports a file that matched the extension filter but could not
// be turned into a raster. The batch skips it and continues.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader decodes images and normalizes them to a fixed geometry.
type Loader struct {
	Width         int
	Height        int
	Interpolation resize.InterpolationFunction
}

// NewLoader returns a Loader producing width x height rasters.
func NewLoader(width, height int, interp resize.InterpolationFunction) *Loader {
	return &Loader{
		Width:         width,
		Height:        height,
		Interpolation: interp,
	}
}

// Load decodes path and returns its fixed-geometry copy.
// Every failure is returned as a *LoadError.
func (l *Loader) Load(path string) (*image.RGBA, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Resize(img, l.Width, l.Height, l.Interpolation), nil
}

// Decode opens and decodes a single image file.
func Decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("decoded image is nil")
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("image has empty bounds %v", b)
	}
	return img, nil
}

// Resize scales img to exactly width x height, ignoring aspect ratio, and
// returns it as an RGBA raster anchored at the origin.
func Resize(img image.Image, width, height int, interp resize.InterpolationFunction) *image.RGBA {
	resized := resize.Resize(uint(width), uint(height), img, interp)
	return toRGBA(resized)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ParseInterpolation maps a flag value to a resize kernel.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return resize.NearestNeighbor, nil
	case "bilinear", "":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	default:
		return resize.Bilinear, fmt.Errorf("unknown interpolation %q", name)
	}
}

// NormalizeExtensions lowercases exts and makes sure each starts with a dot.
func NormalizeExtensions(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// Scan lists the direct entries of dir whose extension is allowed.
// Subdirectories are not descended into. The result is sorted by name.
func Scan(dir string, exts []string) ([]string, error) {
	allowed := NormalizeExtensions(exts)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
