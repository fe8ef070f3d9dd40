package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammedterryjack/private-ai-data/internal/cache"
	"github.com/mohammedterryjack/private-ai-data/internal/observability"
	"github.com/mohammedterryjack/private-ai-data/internal/pipeline"
	"github.com/mohammedterryjack/private-ai-data/internal/progress"
	"github.com/mohammedterryjack/private-ai-data/internal/storage"
)

type fakeIngestor struct {
	mu      sync.Mutex
	block   chan struct{} // when set, jobs wait here before finishing
	imgErr  error
	lastCtx context.Context
}

func (f *fakeIngestor) IngestImage(ctx context.Context, _ []byte, stream *progress.Stream) (*pipeline.ImageResult, error) {
	f.mu.Lock()
	f.lastCtx = ctx
	block := f.block
	f.mu.Unlock()

	stream.Progress("Generating image ID...", 5)
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			stream.Fail("cancelled")
			return nil, ctx.Err()
		}
	}
	if f.imgErr != nil {
		stream.Fail(f.imgErr.Error())
		return nil, f.imgErr
	}

	result := &pipeline.ImageResult{ImageID: "test-id", Caption: "a caption"}
	stream.Complete(result)
	return result, nil
}

func (f *fakeIngestor) IngestDocument(_ context.Context, _ []byte, filename string, stream *progress.Stream) (*pipeline.DocumentResult, error) {
	stream.Progress("Extracting text from PDF", 10)
	result := &pipeline.DocumentResult{DocumentID: "doc-id", OriginalFilename: filename}
	stream.Complete(result)
	return result, nil
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newIngestionHandler(t *testing.T, ingestor Ingestor, workers int) *IngestionHandler {
	t.Helper()
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	return NewIngestionHandler(observability.Nop(), ingestor, pool, IngestionConfig{
		MaxUploadBytes:   1 << 20,
		ConsumerWatchdog: 2 * time.Second,
		EventBuffer:      16,
	})
}

func TestIngestImageStream_NDJSON(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{}, 2)

	req := uploadRequest(t, "/api/v1/ingest/images/stream", "photo.jpg", []byte("img"))
	rec := httptest.NewRecorder()
	h.IngestImageStream(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)

	var first, last progress.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, progress.EventProgress, first.Type)
	assert.Equal(t, progress.EventComplete, last.Type)
}

func TestIngestImageStream_ErrorEventOnFailure(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{imgErr: fmt.Errorf("caption service down")}, 2)

	req := uploadRequest(t, "/api/v1/ingest/images/stream", "photo.jpg", []byte("img"))
	rec := httptest.NewRecorder()
	h.IngestImageStream(rec, req)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	var last progress.Event
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, progress.EventError, last.Type)
	assert.Contains(t, last.Detail, "caption service down")
}

func TestIngestImage_BlockingResponse(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{}, 2)

	req := uploadRequest(t, "/api/v1/ingest/images", "photo.jpg", []byte("img"))
	rec := httptest.NewRecorder()
	h.IngestImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result pipeline.ImageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "test-id", result.ImageID)
}

func TestIngestImage_InvalidInputIs400(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{
		imgErr: fmt.Errorf("%w: not an image", pipeline.ErrInvalidInput),
	}, 2)

	req := uploadRequest(t, "/api/v1/ingest/images", "photo.png", []byte("junk"))
	rec := httptest.NewRecorder()
	h.IngestImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_RejectsUnsupportedFileType(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{}, 2)

	req := uploadRequest(t, "/api/v1/ingest/images", "archive.zip", []byte("PK"))
	rec := httptest.NewRecorder()
	h.IngestImage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type")

	req = uploadRequest(t, "/api/v1/ingest/pdfs", "notes.txt", []byte("hi"))
	rec = httptest.NewRecorder()
	h.IngestPDF(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestImage_MissingFileIs400(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{}, 2)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/images", nil)
	rec := httptest.NewRecorder()
	h.IngestImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_PoolExhaustionIs503(t *testing.T) {
	block := make(chan struct{})
	ingestor := &fakeIngestor{block: block}
	h := newIngestionHandler(t, ingestor, 1)

	// Occupy the only worker.
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		req := uploadRequest(t, "/api/v1/ingest/images", "a.jpg", []byte("img"))
		h.IngestImage(httptest.NewRecorder(), req)
	}()

	// Wait until the worker is actually running.
	require.Eventually(t, func() bool {
		ingestor.mu.Lock()
		defer ingestor.mu.Unlock()
		return ingestor.lastCtx != nil
	}, time.Second, 5*time.Millisecond)

	req := uploadRequest(t, "/api/v1/ingest/images", "b.jpg", []byte("img"))
	rec := httptest.NewRecorder()
	h.IngestImage(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(block)
	<-firstDone
}

func TestIngestImage_WatchdogCancelsStalledJob(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ingestor := &fakeIngestor{block: block}

	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	h := NewIngestionHandler(observability.Nop(), ingestor, pool, IngestionConfig{
		MaxUploadBytes:   1 << 20,
		ConsumerWatchdog: 50 * time.Millisecond,
		EventBuffer:      16,
	})

	start := time.Now()
	req := uploadRequest(t, "/api/v1/ingest/images", "photo.jpg", []byte("img"))
	rec := httptest.NewRecorder()
	h.IngestImage(rec, req)

	// The stalled job must be cancelled promptly once the watchdog fires,
	// not left running until it finishes on its own.
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ingestor.mu.Lock()
	jobCtx := ingestor.lastCtx
	ingestor.mu.Unlock()
	require.NotNil(t, jobCtx)
	assert.ErrorIs(t, jobCtx.Err(), context.Canceled)
}

func TestIngestPDFStream_CarriesFilename(t *testing.T) {
	h := newIngestionHandler(t, &fakeIngestor{}, 2)

	req := uploadRequest(t, "/api/v1/ingest/pdfs/stream", "report.pdf", []byte("%PDF"))
	rec := httptest.NewRecorder()
	h.IngestPDFStream(rec, req)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	var last progress.Event
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	require.Equal(t, progress.EventComplete, last.Type)

	resultJSON, err := json.Marshal(last.Result)
	require.NoError(t, err)
	var result pipeline.DocumentResult
	require.NoError(t, json.Unmarshal(resultJSON, &result))
	assert.Equal(t, "report.pdf", result.OriginalFilename)
}

type fakeRecordStore struct {
	view     *storage.ImageView
	rawFile  *storage.RawFile
	getCalls int
	deleted  []uuid.UUID
}

func (f *fakeRecordStore) GetImage(_ context.Context, id uuid.UUID) (*storage.ImageView, error) {
	f.getCalls++
	if f.view == nil || f.view.ID != id {
		return nil, storage.ErrNotFound
	}
	return f.view, nil
}

func (f *fakeRecordStore) ListImages(_ context.Context, _, _ int) ([]*storage.ImageSummary, error) {
	if f.view == nil {
		return nil, nil
	}
	return []*storage.ImageSummary{{ID: f.view.ID, ImageData: f.view.ImageData}}, nil
}

func (f *fakeRecordStore) DeleteImage(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRecordStore) GetRawFile(_ context.Context, id uuid.UUID) (*storage.RawFile, error) {
	if f.rawFile == nil || f.rawFile.ID != id {
		return nil, storage.ErrNotFound
	}
	return f.rawFile, nil
}

func recordsRouter(h *RecordsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/records/images", h.ListImages)
	r.Get("/records/images/{id}", h.GetImage)
	r.Delete("/records/images/{id}", h.DeleteImage)
	r.Get("/records/pdfs/{id}/file", h.GetPDFFile)
	return r
}

func TestGetImage_CachesReads(t *testing.T) {
	id := uuid.New()
	store := &fakeRecordStore{view: &storage.ImageView{ID: id, ImageData: "b64", Caption: "cap"}}
	h := NewRecordsHandler(observability.Nop(), store, cache.NewMemoryClient(10), time.Minute)
	router := recordsRouter(h)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/images/"+id.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var view storage.ImageView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, id, view.ID)
	}

	assert.Equal(t, 1, store.getCalls, "second read should come from cache")
}

func TestGetImage_NotFound(t *testing.T) {
	h := NewRecordsHandler(observability.Nop(), &fakeRecordStore{}, cache.NewMemoryClient(10), time.Minute)
	router := recordsRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/images/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/images/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteImage_InvalidatesCache(t *testing.T) {
	id := uuid.New()
	store := &fakeRecordStore{view: &storage.ImageView{ID: id, ImageData: "b64"}}
	memCache := cache.NewMemoryClient(10)
	h := NewRecordsHandler(observability.Nop(), store, memCache, time.Minute)
	router := recordsRouter(h)

	// Prime the cache.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/images/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/records/images/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, store.deleted)

	_, err := memCache.Get(context.Background(), cache.ImageKey(id.String()))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestListImages(t *testing.T) {
	id := uuid.New()
	store := &fakeRecordStore{view: &storage.ImageView{ID: id, ImageData: "b64"}}
	h := NewRecordsHandler(observability.Nop(), store, cache.NewMemoryClient(10), time.Minute)
	router := recordsRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/images?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Images []storage.ImageSummary `json:"images"`
		Count  int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestGetPDFFile_ServesOriginalUpload(t *testing.T) {
	id := uuid.New()
	dir := t.TempDir()
	path := filepath.Join(dir, id.String()+"_report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 content"), 0o644))

	store := &fakeRecordStore{rawFile: &storage.RawFile{
		ID:               id,
		FilePath:         path,
		OriginalFilename: "report.pdf",
		FileSize:         16,
	}}
	h := NewRecordsHandler(observability.Nop(), store, cache.NewMemoryClient(10), time.Minute)
	router := recordsRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/pdfs/"+id.String()+"/file", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")
	assert.Equal(t, "%PDF-1.4 content", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/pdfs/"+uuid.NewString()+"/file", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
