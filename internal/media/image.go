// Package media prepares uploaded files for the ingestion pipeline: image
// re-encoding for storage and high-fidelity model input, plus filename
// sanitization for raw document storage.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"

	"image/jpeg"

	"github.com/nfnt/resize"
)

const (
	// Storage copy: small and heavily compressed, the blob store holds base64 text.
	storageSize    = 256
	storageQuality = 50

	// Model copy: full resolution, light compression, detail preserved for captioning.
	captionQuality = 95
)

// EncodeForStorage resizes the image to a small square and re-encodes it as a
// heavily compressed base64 JPEG suitable for the content store.
func EncodeForStorage(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	img = resize.Resize(storageSize, storageSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: storageQuality}); err != nil {
		return "", fmt.Errorf("encode storage jpeg: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeForCaptioning re-encodes the image as a high-quality JPEG at original
// resolution for the vision captioning service.
func EncodeForCaptioning(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: captionQuality}); err != nil {
		return nil, fmt.Errorf("encode caption jpeg: %w", err)
	}

	return buf.Bytes(), nil
}
