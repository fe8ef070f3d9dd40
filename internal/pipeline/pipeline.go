// Package pipeline runs the ingestion stages for images and documents,
// reporting progress on a per-job stream. Stage outcomes fall into three
// classes: success, degraded (the stage's artifact is dropped and the run
// continues) and fatal (the run stops with an error event).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammedterryjack/private-ai-data/internal/clients"
	"github.com/mohammedterryjack/private-ai-data/internal/fingerprint"
	"github.com/mohammedterryjack/private-ai-data/internal/keywords"
	"github.com/mohammedterryjack/private-ai-data/internal/media"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
	"github.com/mohammedterryjack/private-ai-data/internal/pdftext"
	"github.com/mohammedterryjack/private-ai-data/internal/progress"
	"github.com/mohammedterryjack/private-ai-data/internal/storage"
)

// minExtractedTextLen rejects documents whose text layer is effectively
// empty even when extraction nominally succeeds.
const minExtractedTextLen = 10

// ErrInvalidInput marks failures caused by the uploaded bytes rather than by
// a downstream service or store.
var ErrInvalidInput = errors.New("invalid input")

// OCRService extracts text fragments from image bytes.
type OCRService interface {
	ExtractText(ctx context.Context, image []byte) ([]clients.Fragment, error)
}

// LLMService provides captioning, text structuring and embedding.
type LLMService interface {
	DescribeImage(ctx context.Context, image []byte, onChunk func(string)) (string, error)
	StructureText(ctx context.Context, text string, onChunk func(string)) (string, error)
	Vector(ctx context.Context, text string) ([]float32, error)
}

// Persister stores completed ingestion records.
type Persister interface {
	SaveImage(ctx context.Context, rec *storage.ImageRecord) error
	SaveDocument(ctx context.Context, rec *storage.DocumentRecord) (string, error)
}

// ExtractDocumentText pulls the text layer out of an uploaded document.
// Swappable in tests to avoid depending on a PDF renderer.
type ExtractDocumentText func(data []byte) (string, error)

// Options tunes pipeline behavior.
type Options struct {
	// OCRConfidenceThreshold drops OCR fragments at or below this
	// recognizer confidence.
	OCRConfidenceThreshold float64
	// MaxKeywords caps keywords extracted per record.
	MaxKeywords int
}

// ImageResult is returned after a successful image ingestion.
type ImageResult struct {
	ImageID      string   `json:"image_id"`
	Caption      string   `json:"caption"`
	OCRText      string   `json:"ocr_text"`
	Keywords     []string `json:"keywords"`
	VectorLength int      `json:"vector_length"`
}

// DocumentResult is returned after a successful document ingestion.
type DocumentResult struct {
	DocumentID       string   `json:"document_id"`
	ContentLength    int      `json:"content_length"`
	Keywords         []string `json:"keywords"`
	VectorLength     int      `json:"vector_length"`
	StructuredJSON   string   `json:"structured_json"`
	FilePath         string   `json:"file_path"`
	OriginalFilename string   `json:"original_filename"`
}

// Orchestrator drives the ingestion stages.
type Orchestrator struct {
	ocr     OCRService
	llm     LLMService
	store   Persister
	extract ExtractDocumentText
	opts    Options
	log     *observability.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(ocr OCRService, llm LLMService, store Persister, opts Options, log *observability.Logger) *Orchestrator {
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = keywords.DefaultMax
	}
	return &Orchestrator{
		ocr:     ocr,
		llm:     llm,
		store:   store,
		extract: pdftext.Extract,
		opts:    opts,
		log:     log,
	}
}

// IngestImage runs the image pipeline: fingerprint, encode, OCR, caption,
// embed, keywords, persist. Every terminal outcome (result or error) is also
// reported on stream.
func (o *Orchestrator) IngestImage(ctx context.Context, data []byte, stream *progress.Stream) (*ImageResult, error) {
	stream.Progress("Generating image ID...", 5)
	imageID, err := fingerprint.ImageID(data)
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("%w: generate image id: %v", ErrInvalidInput, err))
	}
	log := o.log.WithJob(imageID.String())

	stream.Progress("Converting image to base64...", 15)
	storageB64, err := media.EncodeForStorage(data)
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("encode image: %w", err))
	}

	// OCR is best-effort: a failed extraction degrades to an empty text
	// layer instead of aborting the run.
	stream.Progress("Extracting text from image...", 20)
	var ocrText string
	fragments, err := o.ocr.ExtractText(ctx, data)
	if err != nil {
		log.Warn().Err(err).Msg("ocr extraction failed, continuing without text layer")
	} else {
		ocrText = clients.JoinFragments(fragments, o.opts.OCRConfidenceThreshold)
		stream.Chunk("ocr", 25, ocrText)
	}

	stream.Progress("Generating image caption...", 30)
	captionJPEG, err := media.EncodeForCaptioning(data)
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("encode image for captioning: %w", err))
	}
	caption, err := o.llm.DescribeImage(ctx, captionJPEG, func(chunk string) {
		stream.Chunk("caption", 30, chunk)
	})
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("generate caption: %w", err))
	}

	derived := caption
	if ocrText != "" {
		derived += "\n\nText extracted from image:\n" + ocrText
	}

	stream.Progress("Creating vector representation...", 60)
	vector, err := o.llm.Vector(ctx, derived)
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("generate embedding: %w", err))
	}
	if len(vector) == 0 {
		return nil, o.fail(stream, fmt.Errorf("vector generation returned empty result"))
	}

	stream.Progress("Extracting keywords...", 80)
	kws := keywords.Extract(derived, o.opts.MaxKeywords)

	stream.Progress("Storing in database...", 90)
	if err := o.store.SaveImage(ctx, &storage.ImageRecord{
		ID:       imageID,
		Content:  storageB64,
		Caption:  derived,
		Vector:   vector,
		Keywords: kws,
	}); err != nil {
		return nil, o.fail(stream, fmt.Errorf("store image record: %w", err))
	}

	result := &ImageResult{
		ImageID:      imageID.String(),
		Caption:      caption,
		OCRText:      ocrText,
		Keywords:     kws,
		VectorLength: len(vector),
	}
	log.Info().Strs("keywords", kws).Int("vector_length", len(vector)).Msg("image ingested")
	stream.Complete(result)
	return result, nil
}

// IngestDocument runs the document pipeline: extract text, structure, embed,
// keywords, persist raw file and record.
func (o *Orchestrator) IngestDocument(ctx context.Context, data []byte, originalFilename string, stream *progress.Stream) (*DocumentResult, error) {
	stream.Progress("Extracting text from PDF", 10)
	text, err := o.extract(data)
	if err != nil {
		return nil, o.fail(stream, describeExtractionErr(err))
	}
	if len(strings.TrimSpace(text)) < minExtractedTextLen {
		return nil, o.fail(stream, fmt.Errorf("%w: extracted text is too short or empty", ErrInvalidInput))
	}
	stream.Progress("Text extraction complete", 30)

	stream.Progress("Structuring text with LLM", 40)
	structured, err := o.llm.StructureText(ctx, text, func(chunk string) {
		stream.Chunk("structure", 45, chunk)
	})
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("structure text: %w", err))
	}
	if len(strings.TrimSpace(structured)) < minExtractedTextLen {
		return nil, o.fail(stream, fmt.Errorf("structuring returned empty or too short content"))
	}

	stream.Progress("Generating keywords", 50)
	kws := keywords.Extract(structured, o.opts.MaxKeywords)
	stream.Progress("Keywords generated", 70)

	stream.Progress("Generating vector embeddings", 80)
	vector, err := o.llm.Vector(ctx, structured)
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("generate embedding: %w", err))
	}
	if len(vector) == 0 {
		return nil, o.fail(stream, fmt.Errorf("vector generation returned empty result"))
	}
	stream.Progress("Vector embeddings generated", 90)

	stream.Progress("Saving to database", 95)
	documentID := fingerprint.DocumentID()
	filePath, err := o.store.SaveDocument(ctx, &storage.DocumentRecord{
		ID:               documentID,
		Content:          structured,
		Vector:           vector,
		Keywords:         kws,
		OriginalFilename: originalFilename,
		FileData:         data,
	})
	if err != nil {
		return nil, o.fail(stream, fmt.Errorf("store document record: %w", err))
	}

	result := &DocumentResult{
		DocumentID:       documentID.String(),
		ContentLength:    len(text),
		Keywords:         kws,
		VectorLength:     len(vector),
		StructuredJSON:   structured,
		FilePath:         filePath,
		OriginalFilename: originalFilename,
	}
	o.log.WithJob(documentID.String()).Info().
		Strs("keywords", kws).
		Int("content_length", len(text)).
		Msg("document ingested")
	stream.Complete(result)
	return result, nil
}

func (o *Orchestrator) fail(stream *progress.Stream, err error) error {
	o.log.Error().Err(err).Msg("ingestion failed")
	stream.Fail(err.Error())
	return err
}

func describeExtractionErr(err error) error {
	if errors.Is(err, pdftext.ErrNoText) {
		return fmt.Errorf("%w: this appears to be a scanned image PDF; only text-based PDFs are supported", ErrInvalidInput)
	}
	return fmt.Errorf("%w: extract text from pdf: %v", ErrInvalidInput, err)
}
