package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface. Both *sql.DB and *sql.Tx
// satisfy it.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ImageRepository handles the images table.
type ImageRepository struct {
	db DB
}

// NewImageRepository creates a new image repository.
func NewImageRepository(db DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Upsert stores the base64 rendition, replacing any previous content for the
// same perceptual id.
func (r *ImageRepository) Upsert(ctx context.Context, id uuid.UUID, content string) error {
	query := `
		INSERT INTO images (uuid, content)
		VALUES ($1, $2)
		ON CONFLICT (uuid) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, id, content)
	return err
}

// Get retrieves a stored image by id.
func (r *ImageRepository) Get(ctx context.Context, id uuid.UUID) (*ImageSummary, error) {
	query := `
		SELECT uuid, content, created_at, updated_at
		FROM images WHERE uuid = $1
	`
	img := &ImageSummary{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&img.ID, &img.ImageData, &img.CreatedAt, &img.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return img, err
}

// List returns stored images, newest first.
func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]*ImageSummary, error) {
	query := `
		SELECT uuid, content, created_at, updated_at
		FROM images
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*ImageSummary
	for rows.Next() {
		img := &ImageSummary{}
		if err := rows.Scan(&img.ID, &img.ImageData, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Delete removes a stored image. Deleting a missing id is not an error.
func (r *ImageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE uuid = $1`, id)
	return err
}

// CaptionRepository handles the captions table.
type CaptionRepository struct {
	db DB
}

// NewCaptionRepository creates a new caption repository.
func NewCaptionRepository(db DB) *CaptionRepository {
	return &CaptionRepository{db: db}
}

// Upsert stores the derived caption text for an image id.
func (r *CaptionRepository) Upsert(ctx context.Context, id uuid.UUID, content string) error {
	query := `
		INSERT INTO captions (uuid, content)
		VALUES ($1, $2)
		ON CONFLICT (uuid) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, id, content)
	return err
}

// Get retrieves the caption for an id. A missing caption is an empty string,
// not an error.
func (r *CaptionRepository) Get(ctx context.Context, id uuid.UUID) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx,
		`SELECT content FROM captions WHERE uuid = $1`, id,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return content, err
}

// Delete removes the caption for an id.
func (r *CaptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM captions WHERE uuid = $1`, id)
	return err
}

// DocumentRepository handles the documents table. Documents are insert-only:
// every upload gets a fresh row under a fresh id.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Insert stores the structured content of a document.
func (r *DocumentRepository) Insert(ctx context.Context, id uuid.UUID, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (uuid, content) VALUES ($1, $2)`, id, content,
	)
	return err
}

// Get retrieves a document's structured content.
func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx,
		`SELECT content FROM documents WHERE uuid = $1`, id,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return content, err
}

// VectorRepository handles the vectors table (pgvector embeddings).
type VectorRepository struct {
	db DB
}

// NewVectorRepository creates a new vector repository.
func NewVectorRepository(db DB) *VectorRepository {
	return &VectorRepository{db: db}
}

// Upsert stores the embedding for an id.
func (r *VectorRepository) Upsert(ctx context.Context, id uuid.UUID, vector []float32) error {
	query := `
		INSERT INTO vectors (uuid, embedding)
		VALUES ($1, $2::vector)
		ON CONFLICT (uuid) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, id, FormatVector(vector))
	return err
}

// Get retrieves the stored embedding in pgvector text form. A missing
// embedding is an empty string.
func (r *VectorRepository) Get(ctx context.Context, id uuid.UUID) (string, error) {
	var embedding string
	err := r.db.QueryRowContext(ctx,
		`SELECT embedding FROM vectors WHERE uuid = $1`, id,
	).Scan(&embedding)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return embedding, err
}

// Delete removes the embedding for an id.
func (r *VectorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vectors WHERE uuid = $1`, id)
	return err
}

// KeywordRepository handles the inverted keywords table: each keyword row
// holds the ids of every record tagged with it.
type KeywordRepository struct {
	db DB
}

// NewKeywordRepository creates a new keyword repository.
func NewKeywordRepository(db DB) *KeywordRepository {
	return &KeywordRepository{db: db}
}

// Attach tags id with keyword, creating the keyword row when new.
func (r *KeywordRepository) Attach(ctx context.Context, keyword string, id uuid.UUID) error {
	query := `
		INSERT INTO keywords (keyword, uuids)
		VALUES ($1, ARRAY[$2]::UUID[])
		ON CONFLICT (keyword) DO UPDATE SET
			uuids = array_append(keywords.uuids, EXCLUDED.uuids[1]),
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, keyword, id)
	return err
}

// ListFor returns every keyword tagging id.
func (r *KeywordRepository) ListFor(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT keyword FROM keywords WHERE $1 = ANY(uuids)`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// Detach removes id from every keyword row that references it.
func (r *KeywordRepository) Detach(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE keywords
		SET uuids = array_remove(uuids, $1)
		WHERE $1 = ANY(uuids)
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// RawFileRepository handles the raw_file_paths table.
type RawFileRepository struct {
	db DB
}

// NewRawFileRepository creates a new raw file repository.
func NewRawFileRepository(db DB) *RawFileRepository {
	return &RawFileRepository{db: db}
}

// Upsert records where the original upload for id was written.
func (r *RawFileRepository) Upsert(ctx context.Context, rf *RawFile) error {
	query := `
		INSERT INTO raw_file_paths (uuid, file_path, original_filename, file_size)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uuid) DO UPDATE SET
			file_path = EXCLUDED.file_path,
			original_filename = EXCLUDED.original_filename,
			file_size = EXCLUDED.file_size,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, rf.ID, rf.FilePath, rf.OriginalFilename, rf.FileSize)
	return err
}

// Get retrieves the raw file location for id.
func (r *RawFileRepository) Get(ctx context.Context, id uuid.UUID) (*RawFile, error) {
	query := `
		SELECT uuid, file_path, original_filename, file_size
		FROM raw_file_paths WHERE uuid = $1
	`
	rf := &RawFile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rf.ID, &rf.FilePath, &rf.OriginalFilename, &rf.FileSize,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rf, err
}

// FormatVector renders an embedding in pgvector text form, e.g. "[0.1,0.2]".
func FormatVector(vector []float32) string {
	parts := make([]string, len(vector))
	for i, f := range vector {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
