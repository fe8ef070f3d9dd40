package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mohammedterryjack/private-ai-data/internal/media"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
)

// Coordinator fans one ingestion result out across the stores: relational
// tables, pgvector embeddings, the inverted keyword index and the raw file
// directory.
type Coordinator struct {
	images   *ImageRepository
	captions *CaptionRepository
	docs     *DocumentRepository
	vectors  *VectorRepository
	keywords *KeywordRepository
	rawFiles *RawFileRepository

	rawFilesDir string
	vectorDim   int
	log         *observability.Logger
}

// NewCoordinator creates a coordinator over db, ensuring the raw file
// directory exists.
func NewCoordinator(db DB, rawFilesDir string, vectorDim int, log *observability.Logger) (*Coordinator, error) {
	if err := os.MkdirAll(rawFilesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw files dir: %w", err)
	}
	return &Coordinator{
		images:      NewImageRepository(db),
		captions:    NewCaptionRepository(db),
		docs:        NewDocumentRepository(db),
		vectors:     NewVectorRepository(db),
		keywords:    NewKeywordRepository(db),
		rawFiles:    NewRawFileRepository(db),
		rawFilesDir: rawFilesDir,
		vectorDim:   vectorDim,
		log:         log,
	}, nil
}

// SaveImage persists all derived artifacts for an image. An empty embedding
// skips the vectors table with a warning rather than failing the whole save.
func (c *Coordinator) SaveImage(ctx context.Context, rec *ImageRecord) error {
	if err := c.images.Upsert(ctx, rec.ID, rec.Content); err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	if err := c.captions.Upsert(ctx, rec.ID, rec.Caption); err != nil {
		return fmt.Errorf("store caption: %w", err)
	}
	if err := c.saveVector(ctx, rec.ID, rec.Vector); err != nil {
		return err
	}
	if err := c.attachKeywords(ctx, rec.ID, rec.Keywords); err != nil {
		return err
	}

	c.log.Info().Str("image_id", rec.ID.String()).Msg("image record stored")
	return nil
}

// SaveDocument writes the original upload to the raw file directory and
// persists all derived artifacts, returning the file path used.
func (c *Coordinator) SaveDocument(ctx context.Context, rec *DocumentRecord) (string, error) {
	safeName := media.SanitizeFilename(rec.OriginalFilename)
	filePath := filepath.Join(c.rawFilesDir, fmt.Sprintf("%s_%s", rec.ID, safeName))

	if err := os.WriteFile(filePath, rec.FileData, 0o644); err != nil {
		return "", fmt.Errorf("write raw file: %w", err)
	}

	if err := c.docs.Insert(ctx, rec.ID, rec.Content); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	if err := c.saveVector(ctx, rec.ID, rec.Vector); err != nil {
		return "", err
	}
	if err := c.attachKeywords(ctx, rec.ID, rec.Keywords); err != nil {
		return "", err
	}
	if err := c.rawFiles.Upsert(ctx, &RawFile{
		ID:               rec.ID,
		FilePath:         filePath,
		OriginalFilename: rec.OriginalFilename,
		FileSize:         int64(len(rec.FileData)),
	}); err != nil {
		return "", fmt.Errorf("store raw file path: %w", err)
	}

	c.log.Info().
		Str("document_id", rec.ID.String()).
		Str("file_path", filePath).
		Msg("document record stored")
	return filePath, nil
}

// GetImage joins all derived artifacts for a stored image.
func (c *Coordinator) GetImage(ctx context.Context, id uuid.UUID) (*ImageView, error) {
	img, err := c.images.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	caption, err := c.captions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	vector, err := c.vectors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	keywords, err := c.keywords.ListFor(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ImageView{
		ID:        img.ID,
		ImageData: img.ImageData,
		Caption:   caption,
		Keywords:  keywords,
		Vector:    vector,
		CreatedAt: img.CreatedAt,
		UpdatedAt: img.UpdatedAt,
	}, nil
}

// ListImages returns stored image summaries, newest first.
func (c *Coordinator) ListImages(ctx context.Context, limit, offset int) ([]*ImageSummary, error) {
	return c.images.List(ctx, limit, offset)
}

// DeleteImage removes an image and all of its derived artifacts.
func (c *Coordinator) DeleteImage(ctx context.Context, id uuid.UUID) error {
	if err := c.images.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if err := c.captions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete caption: %w", err)
	}
	if err := c.vectors.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if err := c.keywords.Detach(ctx, id); err != nil {
		return fmt.Errorf("detach keywords: %w", err)
	}

	c.log.Info().Str("image_id", id.String()).Msg("image record deleted")
	return nil
}

// GetRawFile returns where the original upload for a document landed.
func (c *Coordinator) GetRawFile(ctx context.Context, id uuid.UUID) (*RawFile, error) {
	return c.rawFiles.Get(ctx, id)
}

func (c *Coordinator) saveVector(ctx context.Context, id uuid.UUID, vector []float32) error {
	if len(vector) == 0 {
		c.log.Warn().Str("id", id.String()).Msg("empty embedding, skipping vector storage")
		return nil
	}
	if len(vector) != c.vectorDim {
		c.log.Warn().
			Str("id", id.String()).
			Int("want", c.vectorDim).
			Int("got", len(vector)).
			Msg("unexpected embedding dimension")
	}
	if err := c.vectors.Upsert(ctx, id, vector); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

func (c *Coordinator) attachKeywords(ctx context.Context, id uuid.UUID, keywords []string) error {
	for _, kw := range keywords {
		if err := c.keywords.Attach(ctx, kw, id); err != nil {
			return fmt.Errorf("attach keyword %q: %w", kw, err)
		}
	}
	return nil
}
