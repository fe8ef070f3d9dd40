package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Fragment is a single text detection returned by the OCR service, with the
// recognizer's confidence for that region.
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCRClient talks to the OCR sidecar service.
type OCRClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOCRClient creates an OCR client. timeout bounds the whole extraction
// request, recognition included.
func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	return &OCRClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ocrResponse struct {
	Results []Fragment `json:"results"`
}

// ExtractText submits the original image bytes and returns the raw
// detections. Callers decide which fragments to keep; see JoinFragments.
func (c *OCRClient) ExtractText(ctx context.Context, image []byte) ([]Fragment, error) {
	url := c.baseURL + "/ocr/extract-text/"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreatePart(imagePartHeader("file", "image.jpg"))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, badStatusErr(url, resp.StatusCode, body)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, badStatusErr(url, resp.StatusCode, []byte(err.Error()))
	}
	return parsed.Results, nil
}

// JoinFragments concatenates fragments above the confidence threshold with
// newlines, preserving detection order.
func JoinFragments(fragments []Fragment, threshold float64) string {
	lines := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f.Confidence > threshold {
			lines = append(lines, f.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func imagePartHeader(field, filename string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/jpeg")
	return h
}
