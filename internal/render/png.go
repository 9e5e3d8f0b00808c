package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// ParseCompression maps a configuration name to a PNG compression level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return 0, fmt.Errorf("invalid png compression %q: must be default, speed, best or none", name)
	}
}

// PNGSink writes lossless PNG files into Dir.
type PNGSink struct {
	Dir         string
	Compression png.CompressionLevel
	// Upscale enlarges every pixel to an Upscale x Upscale block; 0 and 1 keep the size.
	Upscale int
	// BlurSigma applies a Gaussian blur before encoding when positive.
	BlurSigma float32
}

// Write implements Sink. A name without extension gets ".png" appended.
func (s *PNGSink) Write(name string, width, height int, px PixelFunc) (string, error) {
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	path := filepath.Join(s.Dir, name)

	data, err := s.Encode(width, height, px)
	if err != nil {
		return "", &RenderError{Output: path, Err: err}
	}

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return "", &RenderError{Output: path, Err: fmt.Errorf("failed to create output dir: %w", err)}
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &RenderError{Output: path, Err: fmt.Errorf("failed to write image: %w", err)}
	}
	return path, nil
}

// Encode builds the pixel buffer, applies post-processing and returns PNG bytes.
func (s *PNGSink) Encode(width, height int, px PixelFunc) ([]byte, error) {
	img, err := Buffer(width, height, px)
	if err != nil {
		return nil, err
	}
	img = s.postProcess(img)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: s.Compression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *PNGSink) postProcess(img image.Image) image.Image {
	if s.BlurSigma > 0 {
		img = blur(img, s.BlurSigma)
	}
	if s.Upscale > 1 {
		img = upscale(img, s.Upscale)
	}
	return img
}

func blur(src image.Image, sigma float32) image.Image {
	g := gift.New(gift.GaussianBlur(sigma))
	if _, ok := src.(*image.Gray); ok {
		dst := image.NewGray(g.Bounds(src.Bounds()))
		g.Draw(dst, src)
		return dst
	}
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func upscale(src image.Image, factor int) image.Image {
	b := src.Bounds()
	r := image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor)

	var dst draw.Image
	if _, ok := src.(*image.Gray); ok {
		dst = image.NewGray(r)
	} else {
		dst = image.NewNRGBA(r)
	}
	draw.NearestNeighbor.Scale(dst, r, src, b, draw.Src, nil)
	return dst
}
