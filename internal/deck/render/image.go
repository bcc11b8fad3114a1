package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("empty image payload")

// Image is a decoded slide picture.
type Image struct {
	Data     []byte
	MimeType string
	WidthPx  int
	HeightPx int
}

// DecodeImage accepts raw base64 or a data URI and returns the image bytes
// together with their mime type and pixel dimensions.
func DecodeImage(encoded string) (Image, error) {
	payload := strings.TrimSpace(encoded)
	declared := ""
	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok {
			return Image{}, errors.New("malformed data uri")
		}
		declared = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = data
	}
	if payload == "" {
		return Image{}, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some clients strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return Image{}, fmt.Errorf("decode base64: %w", err)
		}
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}

	img := Image{Data: data, MimeType: sniffMime(data, declared)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.WidthPx = cfg.Width
		img.HeightPx = cfg.Height
	}
	return img, nil
}

func sniffMime(data []byte, declared string) string {
	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return "image/png"
}
