package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// FridgePhotoPrompt is sent with every fridge photo
const FridgePhotoPrompt = "Analyze this fridge photo and suggest recipes based on the ingredients you can see. " +
	"List the ingredients first, then provide 2-3 recipe suggestions with cooking instructions."

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Photo is an uploaded image. Size is the size declared by the client.
type Photo struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// EncodedImage is an image ready to send to the backend
type EncodedImage struct {
	ContentType string
	Data        []byte
}

// Format returns the MIME subtype, e.g. "jpeg"
func (e EncodedImage) Format() string {
	if i := strings.IndexByte(e.ContentType, '/'); i >= 0 {
		return e.ContentType[i+1:]
	}
	return e.ContentType
}

// Base64 returns the bare base64 encoding of the image bytes
func (e EncodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURL returns the image inlined as a data URL
func (e EncodedImage) DataURL() string {
	return "data:" + e.ContentType + ";base64," + e.Base64()
}

// Photo describes the image for validation
func (e EncodedImage) Photo() Photo {
	return Photo{ContentType: e.ContentType, Size: int64(len(e.Data)), Data: e.Data}
}

// PhotoOptions configures upload validation and compression
type PhotoOptions struct {
	MaxBytes     int64
	Compress     bool
	MaxDimension int
	Quality      int
}

// PhotoProcessor validates and optionally shrinks fridge photos
type PhotoProcessor struct {
	opts PhotoOptions
}

// NewPhotoProcessor creates a processor with opts
func NewPhotoProcessor(opts PhotoOptions) *PhotoProcessor {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1024
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	return &PhotoProcessor{opts: opts}
}

// Validate checks size and type of a photo
func (p *PhotoProcessor) Validate(photo Photo) error {
	if photo.Size > p.opts.MaxBytes || int64(len(photo.Data)) > p.opts.MaxBytes {
		return &ValidationError{
			Field:   "photo",
			Message: fmt.Sprintf("Image too large. Maximum supported size is %s. Please compress or resize your image.", formatBytes(p.opts.MaxBytes)),
		}
	}
	if !allowedImageTypes[strings.ToLower(photo.ContentType)] {
		return &ValidationError{
			Field:   "photo",
			Message: "Unsupported image format. Please use JPEG, PNG, GIF, or WebP images.",
		}
	}
	if len(photo.Data) == 0 {
		return &ValidationError{Field: "photo", Message: "Image is required"}
	}
	return nil
}

// Prepare validates the photo and, when compression is enabled, scales it to
// fit the maximum dimension and re-encodes it as JPEG.
func (p *PhotoProcessor) Prepare(photo Photo) (EncodedImage, error) {
	if err := p.Validate(photo); err != nil {
		return EncodedImage{}, err
	}

	original := EncodedImage{ContentType: strings.ToLower(photo.ContentType), Data: photo.Data}
	if !p.opts.Compress {
		return original, nil
	}

	compressed, err := p.compress(photo.Data)
	if err != nil {
		return original, nil
	}
	if len(compressed) >= len(photo.Data) {
		return original, nil
	}
	return EncodedImage{ContentType: "image/jpeg", Data: compressed}, nil
}

func (p *PhotoProcessor) compress(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	maxDim := p.opts.MaxDimension
	if w > maxDim || h > maxDim {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/mb)
}

// ParseDataURL splits a data URL into its MIME type and decoded bytes
func ParseDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return contentType, data, nil
}
