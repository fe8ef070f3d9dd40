package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(255 * x / w),
				G: uint8(255 * y / h),
				B: uint8(255 * (x + y) / (w + h)),
				A: 255,
			})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageID_Deterministic(t *testing.T) {
	data := encodeJPEG(t, gradientImage(120, 80), 90)

	first, err := ImageID(data)
	require.NoError(t, err)

	second, err := ImageID(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestImageID_StableUnderReencoding(t *testing.T) {
	img := gradientImage(200, 160)

	original, err := ImageID(encodeJPEG(t, img, 95))
	require.NoError(t, err)

	// Same pixels through a different codec path.
	recompressed, err := ImageID(encodeJPEG(t, img, 40))
	require.NoError(t, err)
	assert.Equal(t, original, recompressed, "recompression must not change the id")

	asPNG, err := ImageID(encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, original, asPNG, "codec change must not change the id")

	resized := resize.Resize(100, 80, img, resize.Lanczos3)
	smaller, err := ImageID(encodeJPEG(t, resized, 90))
	require.NoError(t, err)
	assert.Equal(t, original, smaller, "resizing must not change the id")
}

func TestImageID_DistinctContentLikelyDiffers(t *testing.T) {
	// Probabilistic property: structurally different random images should
	// essentially never share a 64-bit dhash. Assert over a batch rather
	// than claiming "always differ".
	rng := rand.New(rand.NewSource(7))
	seen := map[string]bool{}
	collisions := 0

	for i := 0; i < 20; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				img.Set(x, y, color.RGBA{
					R: uint8(rng.Intn(256)),
					G: uint8(rng.Intn(256)),
					B: uint8(rng.Intn(256)),
					A: 255,
				})
			}
		}

		id, err := ImageID(encodePNG(t, img))
		require.NoError(t, err)
		if seen[id.String()] {
			collisions++
		}
		seen[id.String()] = true
	}

	assert.LessOrEqual(t, collisions, 1, "distinct random images should essentially never collide")
}

func TestImageID_RejectsUndecodableBytes(t *testing.T) {
	_, err := ImageID([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestDocumentID_NeverDeduplicates(t *testing.T) {
	assert.NotEqual(t, DocumentID(), DocumentID())
}
