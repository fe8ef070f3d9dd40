// Package storage provides database models, repositories and the persistence
// coordinator for ingested media records.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// ImageRecord is the full set of artifacts derived from one image, keyed by
// the image's perceptual id.
type ImageRecord struct {
	ID       uuid.UUID
	Content  string // base64 storage rendition
	Caption  string // caption plus any extracted text
	Vector   []float32
	Keywords []string
}

// DocumentRecord is the full set of artifacts derived from one document.
// Document ids are random, so repeated uploads produce distinct records.
type DocumentRecord struct {
	ID       uuid.UUID
	Content  string // structured rendition of the extracted text
	Vector   []float32
	Keywords []string

	OriginalFilename string
	FileData         []byte
}

// ImageView is the retrieval shape for a stored image, joining all derived
// artifacts.
type ImageView struct {
	ID        uuid.UUID `json:"uuid"`
	ImageData string    `json:"image_data"`
	Caption   string    `json:"caption"`
	Keywords  []string  `json:"keywords"`
	Vector    string    `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageSummary is the listing shape for stored images.
type ImageSummary struct {
	ID        uuid.UUID `json:"uuid"`
	ImageData string    `json:"image_data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawFile records where a document's original upload landed on disk.
type RawFile struct {
	ID               uuid.UUID `json:"uuid"`
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
}
