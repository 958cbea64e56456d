package recording

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/nfnt/resize"
)

// DefaultThumbnailWidth is the width crawl screenshots are scaled to
const DefaultThumbnailWidth = 320

// Decode reads a PNG screenshot
func Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}

// ThumbnailBase64 scales a PNG screenshot down to maxWidth and returns it
// base64 encoded
func ThumbnailBase64(data []byte, maxWidth uint) (string, error) {
	img, err := Decode(data)
	if err != nil {
		return "", err
	}
	if maxWidth == 0 {
		maxWidth = DefaultThumbnailWidth
	}

	// Thumbnail keeps aspect ratio and never upscales
	thumb := resize.Thumbnail(maxWidth, uint(img.Bounds().Dy()), img, resize.Bilinear)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
