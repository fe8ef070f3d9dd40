package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mohammedterryjack/private-ai-data/internal/cache"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
	"github.com/mohammedterryjack/private-ai-data/internal/storage"
)

// RecordStore reads and deletes persisted ingestion records.
type RecordStore interface {
	GetImage(ctx context.Context, id uuid.UUID) (*storage.ImageView, error)
	ListImages(ctx context.Context, limit, offset int) ([]*storage.ImageSummary, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
	GetRawFile(ctx context.Context, id uuid.UUID) (*storage.RawFile, error)
}

// RecordsHandler serves stored records.
type RecordsHandler struct {
	logger   *observability.Logger
	store    RecordStore
	cache    cache.Client
	cacheTTL time.Duration
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(logger *observability.Logger, store RecordStore, cacheClient cache.Client, cacheTTL time.Duration) *RecordsHandler {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	return &RecordsHandler{
		logger:   logger,
		store:    store,
		cache:    cacheClient,
		cacheTTL: cacheTTL,
	}
}

// GetImage handles GET /api/v1/records/images/{id}.
func (h *RecordsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	key := cache.ImageKey(id.String())
	if cached, err := h.cache.Get(ctx, key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	view, err := h.store.GetImage(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "image not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("image_id", id.String()).Msg("failed to load image record")
		writeError(w, http.StatusInternalServerError, "failed to load image record", err.Error())
		return
	}

	body, err := json.Marshal(view)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode image record", err.Error())
		return
	}
	if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
		h.logger.Warn().Err(err).Msg("failed to cache image record")
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// ListImages handles GET /api/v1/records/images.
func (h *RecordsHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	images, err := h.store.ListImages(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list image records")
		writeError(w, http.StatusInternalServerError, "failed to list image records", err.Error())
		return
	}
	if images == nil {
		images = []*storage.ImageSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"images": images, "count": len(images)})
}

// DeleteImage handles DELETE /api/v1/records/images/{id}.
func (h *RecordsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteImage(ctx, id); err != nil {
		h.logger.Error().Err(err).Str("image_id", id.String()).Msg("failed to delete image record")
		writeError(w, http.StatusInternalServerError, "failed to delete image record", err.Error())
		return
	}
	if err := h.cache.Delete(ctx, cache.ImageKey(id.String())); err != nil {
		h.logger.Warn().Err(err).Msg("failed to invalidate cached image record")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "image deleted", "uuid": id.String()})
}

// GetPDFFile handles GET /api/v1/records/pdfs/{id}/file, serving the original
// upload back under its original filename.
func (h *RecordsHandler) GetPDFFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rf, err := h.loadRawFile(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", id.String()).Msg("failed to locate raw file")
		writeError(w, http.StatusInternalServerError, "failed to locate raw file", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rf.OriginalFilename+`"`)
	http.ServeFile(w, r, rf.FilePath)
}

// loadRawFile resolves raw file metadata through the record cache.
func (h *RecordsHandler) loadRawFile(ctx context.Context, id uuid.UUID) (*storage.RawFile, error) {
	key := cache.RawFileKey(id.String())
	if cached, err := h.cache.Get(ctx, key); err == nil {
		var rf storage.RawFile
		if json.Unmarshal(cached, &rf) == nil {
			return &rf, nil
		}
	}

	rf, err := h.store.GetRawFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if body, err := json.Marshal(rf); err == nil {
		if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
			h.logger.Warn().Err(err).Msg("failed to cache raw file metadata")
		}
	}
	return rf, nil
}

func (h *RecordsHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
