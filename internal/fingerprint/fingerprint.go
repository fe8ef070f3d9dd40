// Package fingerprint derives stable content identifiers for uploaded media.
//
// Images get a perceptual identifier: a 64-bit difference hash (dhash) of the
// decoded pixels, deterministically mapped to a UUIDv5. Re-compressing or
// resizing an image yields the same id, so the id doubles as a near-duplicate
// key. Two visually distinct images collide only within the hash's 64-bit
// space; that residual collision probability is an accepted property of the
// scheme, not a defect.
//
// Documents get a fresh random UUIDv4 per ingestion: no deduplication is
// performed for that media kind. The asymmetry matches the identifiers already
// present in the knowledge stores.
package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"
)

// ImageID computes the perceptual identifier for raw image bytes.
// Undecodable bytes are an input-validation error; the caller must reject the
// upload before any pipeline stage runs.
func ImageID(data []byte) (uuid.UUID, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode image: %w", err)
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return uuid.Nil, fmt.Errorf("compute dhash: %w", err)
	}

	// Same bit vector, same id: UUIDv5 over the hex-encoded hash bits.
	bits := fmt.Sprintf("%016x", hash.GetHash())
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(bits)), nil
}

// DocumentID issues a fresh random identifier for a document ingestion.
func DocumentID() uuid.UUID {
	return uuid.New()
}
