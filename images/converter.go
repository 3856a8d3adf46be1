package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"

	"go-elife-client/models"

	xdraw "golang.org/x/image/draw"
	"pault.ag/go/cbeff/jpeg2000"
)

// FrameOptions controls how a captured frame is prepared for upload.
type FrameOptions struct {
	// MaxWidth/MaxHeight bound the output size, keeping aspect ratio. Zero means unbounded.
	MaxWidth  int
	MaxHeight int
	// Quality in (0,1], mapped onto JPEG quality 1..100.
	Quality float64
}

// PrepareFrame decodes data (JPEG, JPEG 2000 or PNG), downscales it to fit the
// options and re-encodes it as JPEG.
func PrepareFrame(name string, data []byte, opts FrameOptions) (models.ImageFile, error) {
	img, err := Decode(data)
	if err != nil {
		return models.ImageFile{}, fmt.Errorf("failed to decode frame %s: %w", name, err)
	}

	bounds := img.Bounds()
	slog.Debug("Frame decoded", "name", name, "width", bounds.Dx(), "height", bounds.Dy())

	img = resizeToFit(img, opts.MaxWidth, opts.MaxHeight)

	encoded, err := EncodeJPEG(img, opts.Quality)
	if err != nil {
		return models.ImageFile{}, fmt.Errorf("failed to encode frame %s: %w", name, err)
	}

	slog.Debug("Frame prepared", "name", name, "quality", opts.Quality, "size", len(encoded))
	return models.ImageFile{
		Name:        name,
		ContentType: "image/jpeg",
		Data:        encoded,
	}, nil
}

// Decode attempts to decode an image from bytes, trying multiple formats
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data provided")
	}

	// Try JPEG first (most common)
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Scanned or chip-read ID photos are often JPEG 2000
	if img, err := jpeg2000.Parse(data); err == nil {
		return img, nil
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("unsupported or invalid image format")
}

// EncodeJPEG encodes img with quality in (0,1]; out-of-range values use the JPEG default.
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := jpeg.DefaultQuality
	if quality > 0 && quality <= 1 {
		q = int(math.Max(1, math.Round(quality*100)))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resizeToFit scales img to fit within maxW×maxH (keeping aspect ratio)
func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	bw := src.Bounds().Dx()
	bh := src.Bounds().Dy()

	if maxW <= 0 && maxH <= 0 {
		return src
	}
	if maxW <= 0 {
		scale := float64(maxH) / float64(bh)
		maxW = int(math.Round(float64(bw) * scale))
	}
	if maxH <= 0 {
		scale := float64(maxW) / float64(bw)
		maxH = int(math.Round(float64(bh) * scale))
	}

	scale := math.Min(float64(maxW)/float64(bw), float64(maxH)/float64(bh))
	if scale >= 1.0 {
		return src // already small enough
	}
	w := int(math.Max(1, math.Round(float64(bw)*scale)))
	h := int(math.Max(1, math.Round(float64(bh)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// CatmullRom = high quality, good for photos/faces
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
