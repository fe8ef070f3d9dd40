package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// LLMClient talks to the language-model agent for captioning, text
// structuring and embedding.
type LLMClient struct {
	baseURL string

	// Streaming endpoints hold the connection open while the model
	// generates, so they get a longer budget than single-shot calls.
	streamClient *http.Client
	callClient   *http.Client
}

// NewLLMClient creates a client for the language-model agent. callTimeout
// bounds the embedding call, streamTimeout bounds the caption and structure
// streams end to end.
func NewLLMClient(baseURL string, callTimeout, streamTimeout time.Duration) *LLMClient {
	return &LLMClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		streamClient: &http.Client{Timeout: streamTimeout},
		callClient:   &http.Client{Timeout: callTimeout},
	}
}

// DescribeImage streams a caption for the image, calling onChunk for each
// generated piece, and returns the full caption. onChunk may be nil.
func (c *LLMClient) DescribeImage(ctx context.Context, image []byte, onChunk func(string)) (string, error) {
	url := c.baseURL + "/image/describe/stream"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreatePart(imagePartHeader("file", "image.jpg"))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.collectStream(req, url, onChunk)
}

// StructureText streams a structured rendition of the raw document text,
// calling onChunk for each generated piece, and returns the full result.
func (c *LLMClient) StructureText(ctx context.Context, text string, onChunk func(string)) (string, error) {
	url := c.baseURL + "/structure/stream/"

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.collectStream(req, url, onChunk)
}

// Vector returns the embedding for text.
func (c *LLMClient) Vector(ctx context.Context, text string) ([]float32, error) {
	url := c.baseURL + "/vector/"

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.callClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, badStatusErr(url, resp.StatusCode, raw)
	}

	var parsed struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, badStatusErr(url, resp.StatusCode, []byte(err.Error()))
	}
	return parsed.Vector, nil
}

func (c *LLMClient) collectStream(req *http.Request, url string, onChunk func(string)) (string, error) {
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return "", classifyTransportErr(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", badStatusErr(url, resp.StatusCode, raw)
	}

	text, err := NewStreamParser(resp.Body).Collect(onChunk)
	if err != nil {
		return text, classifyTransportErr(err, url)
	}
	return text, nil
}
