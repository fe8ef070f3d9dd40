// Package handlers provides HTTP handlers for the file ingestor API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mohammedterryjack/private-ai-data/internal/clients"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
	"github.com/mohammedterryjack/private-ai-data/internal/pipeline"
	"github.com/mohammedterryjack/private-ai-data/internal/progress"
)

// Ingestor runs ingestion pipelines, reporting on a progress stream.
type Ingestor interface {
	IngestImage(ctx context.Context, data []byte, stream *progress.Stream) (*pipeline.ImageResult, error)
	IngestDocument(ctx context.Context, data []byte, originalFilename string, stream *progress.Stream) (*pipeline.DocumentResult, error)
}

// IngestionConfig tunes ingestion handler behavior.
type IngestionConfig struct {
	MaxUploadBytes   int64
	ConsumerWatchdog time.Duration
	EventBuffer      int
}

// IngestionHandler handles image and document upload requests.
type IngestionHandler struct {
	logger   *observability.Logger
	ingestor Ingestor
	pool     *ants.Pool
	cfg      IngestionConfig
}

// NewIngestionHandler creates a new ingestion handler. pool bounds the number
// of pipelines running at once.
func NewIngestionHandler(logger *observability.Logger, ingestor Ingestor, pool *ants.Pool, cfg IngestionConfig) *IngestionHandler {
	return &IngestionHandler{
		logger:   logger,
		ingestor: ingestor,
		pool:     pool,
		cfg:      cfg,
	}
}

// IngestImage handles POST /api/v1/ingest/images.
func (h *IngestionHandler) IngestImage(w http.ResponseWriter, r *http.Request) {
	data, _, ok := h.readUpload(w, r, isImageUpload)
	if !ok {
		return
	}
	h.runBlocking(w, r, func(ctx context.Context, stream *progress.Stream) (any, error) {
		return h.ingestor.IngestImage(ctx, data, stream)
	})
}

// IngestImageStream handles POST /api/v1/ingest/images/stream, replying with
// a newline-delimited JSON event stream.
func (h *IngestionHandler) IngestImageStream(w http.ResponseWriter, r *http.Request) {
	data, _, ok := h.readUpload(w, r, isImageUpload)
	if !ok {
		return
	}
	h.runStreaming(w, r, func(ctx context.Context, stream *progress.Stream) {
		h.ingestor.IngestImage(ctx, data, stream) //nolint:errcheck // reported via the stream
	})
}

// IngestPDF handles POST /api/v1/ingest/pdfs.
func (h *IngestionHandler) IngestPDF(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := h.readUpload(w, r, isPDFUpload)
	if !ok {
		return
	}
	h.runBlocking(w, r, func(ctx context.Context, stream *progress.Stream) (any, error) {
		return h.ingestor.IngestDocument(ctx, data, filename, stream)
	})
}

// IngestPDFStream handles POST /api/v1/ingest/pdfs/stream.
func (h *IngestionHandler) IngestPDFStream(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := h.readUpload(w, r, isPDFUpload)
	if !ok {
		return
	}
	h.runStreaming(w, r, func(ctx context.Context, stream *progress.Stream) {
		h.ingestor.IngestDocument(ctx, data, filename, stream) //nolint:errcheck // reported via the stream
	})
}

// isImageUpload accepts image/* declared types or a known image extension.
func isImageUpload(contentType, filename string) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

// isPDFUpload accepts application/pdf declared types or a .pdf extension.
func isPDFUpload(contentType, filename string) bool {
	return contentType == "application/pdf" || strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// readUpload extracts the uploaded file from the multipart form. accept
// validates the part's declared content type and filename.
func (h *IngestionHandler) readUpload(w http.ResponseWriter, r *http.Request, accept func(contentType, filename string) bool) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload", err.Error())
		return nil, "", false
	}
	defer file.Close()

	if !accept(header.Header.Get("Content-Type"), header.Filename) {
		writeError(w, http.StatusBadRequest, "unsupported file type", header.Filename)
		return nil, "", false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty file upload", "")
		return nil, "", false
	}
	return data, header.Filename, true
}

// runStreaming submits the job to the worker pool and relays progress events
// as NDJSON until the terminal event. When the client disconnects or the
// watchdog fires, the job's context is cancelled so the pipeline stops.
func (h *IngestionHandler) runStreaming(w http.ResponseWriter, r *http.Request, job func(context.Context, *progress.Stream)) {
	stream := progress.NewStream(h.cfg.EventBuffer)
	jobCtx, cancel := context.WithCancel(context.Background())

	if err := h.pool.Submit(func() { job(jobCtx, stream) }); err != nil {
		cancel()
		h.submitError(w, err)
		return
	}

	defer func() {
		stream.Close()
		cancel()
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for {
		ev, ok := stream.Next(r.Context(), h.cfg.ConsumerWatchdog)
		if !ok {
			return
		}
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if ev.Terminal() {
			return
		}
	}
}

// runBlocking submits the job to the worker pool, drains progress internally
// and replies once with the final result or error.
func (h *IngestionHandler) runBlocking(w http.ResponseWriter, r *http.Request, job func(context.Context, *progress.Stream) (any, error)) {
	stream := progress.NewStream(h.cfg.EventBuffer)
	jobCtx, cancel := context.WithCancel(context.Background())

	type outcome struct {
		result any
		err    error
	}
	outCh := make(chan outcome, 1)

	if err := h.pool.Submit(func() {
		result, err := job(jobCtx, stream)
		outCh <- outcome{result: result, err: err}
	}); err != nil {
		cancel()
		h.submitError(w, err)
		return
	}

	defer func() {
		stream.Close()
		cancel()
	}()

	for {
		ev, ok := stream.Next(r.Context(), h.cfg.ConsumerWatchdog)
		if !ok || ev.Terminal() {
			break
		}
	}

	// The consumer is done, whether by terminal event, watchdog timeout or
	// client disconnect. Stop the job before collecting its outcome so a
	// stalled pipeline doesn't keep running behind an abandoned request.
	stream.Close()
	cancel()

	out := <-outCh
	if out.err != nil {
		status := errorStatus(out.err)
		writeError(w, status, "ingestion failed", out.err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out.result)
}

func (h *IngestionHandler) submitError(w http.ResponseWriter, err error) {
	if errors.Is(err, ants.ErrPoolOverload) {
		writeError(w, http.StatusServiceUnavailable, "too many concurrent ingestions", "")
		return
	}
	h.logger.Error().Err(err).Msg("failed to submit ingestion job")
	writeError(w, http.StatusInternalServerError, "failed to start ingestion", err.Error())
}

// errorStatus maps pipeline failures onto HTTP statuses: bad uploads are the
// client's fault, upstream stage failures surface as gateway errors.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, clients.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, clients.ErrServiceTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, clients.ErrBadResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
