package publish

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	minThumbnailDimension     = 300
	maxThumbnailDimension     = 600
	defaultThumbnailQuality   = 0.6
	defaultThumbnailDimension = minThumbnailDimension
)

// ThumbnailFunc re-encodes a cover image.
type ThumbnailFunc func(data []byte, maxDimension int, quality float64) ([]byte, error)

// clampDimension keeps the thumbnail size within [300, 600].
func clampDimension(d int) int {
	switch {
	case d <= 0:
		return defaultThumbnailDimension
	case d < minThumbnailDimension:
		return minThumbnailDimension
	case d > maxThumbnailDimension:
		return maxThumbnailDimension
	default:
		return d
	}
}

// MakeThumbnail decodes a JPEG, PNG, GIF or WebP cover, scales it so neither side exceeds
// maxDimension and re-encodes it as JPEG at the given quality (0, 1].
func MakeThumbnail(data []byte, maxDimension int, quality float64) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover image: %w", err)
	}

	maxDimension = clampDimension(maxDimension)
	if quality <= 0 || quality > 1 {
		quality = defaultThumbnailQuality
	}

	bounds := src.Bounds()
	w, h := scaledSize(bounds.Dx(), bounds.Dy(), maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// scaledSize fits w x h into a limit x limit box, preserving aspect ratio and never upscaling.
func scaledSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
