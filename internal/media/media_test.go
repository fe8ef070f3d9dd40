package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestEncodeForStorage_ProducesDecodableBase64JPEG(t *testing.T) {
	data := solidJPEG(t, 640, 480, color.RGBA{R: 200, G: 30, B: 30, A: 255})

	b64, err := EncodeForStorage(data)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())
	assert.Less(t, len(raw), len(data), "storage copy should be smaller than the original")
}

func TestEncodeForCaptioning_KeepsResolution(t *testing.T) {
	data := solidJPEG(t, 320, 240, color.RGBA{B: 255, A: 255})

	out, err := EncodeForCaptioning(data)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestEncode_RejectsGarbage(t *testing.T) {
	_, err := EncodeForStorage([]byte("nope"))
	assert.Error(t, err)

	_, err = EncodeForCaptioning([]byte("nope"))
	assert.Error(t, err)
}

func TestSanitizeFilename_ReplacesUnsafeChars(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i.pdf", SanitizeFilename(`a<b>c:d"e/f\g|h?i.pdf`))
	assert.Equal(t, "report 2024.pdf", SanitizeFilename("report 2024.pdf"))
}

func TestSanitizeFilename_TruncatesPreservingExtension(t *testing.T) {
	long := strings.Repeat("x", 300) + ".pdf"
	got := SanitizeFilename(long)

	assert.Len(t, got, 200)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestSanitizeFilename_ExtensionLongerThanBound(t *testing.T) {
	// A final dot far from the end makes the "extension" dominate the name.
	got := SanitizeFilename("x." + strings.Repeat("a", 220))
	assert.LessOrEqual(t, len(got), 200)

	got = SanitizeFilename("." + strings.Repeat("b", 300))
	assert.LessOrEqual(t, len(got), 200)

	// Base shorter than the room left for it.
	got = SanitizeFilename(strings.Repeat("c", 150) + "." + strings.Repeat("d", 60))
	assert.LessOrEqual(t, len(got), 200)
	assert.True(t, strings.HasPrefix(got, "ccc"))
}
