package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Client talks to the RAG gateway. All request/response calls are stateless;
// the streaming query lives in stream.go.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger attaches a zap logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client for the API at baseURL (e.g. "http://localhost:3000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed: %s", decodeDetail(resp.Body, "health check failed"))
	}

	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &out, nil
}

// Upload sends one file as the multipart field "file" to POST /v1/upload.
// size is the total byte count of r; onProgress, when non-nil, receives the
// percentage (0-100) of bytes handed to the transport so far.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, size int64, onProgress func(percent int)) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := io.Reader(r)
		if onProgress != nil && size > 0 {
			src = &progressReader{r: r, total: size, report: onProgress}
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload failed: %s", decodeDetail(resp.Body, "upload failed"))
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	c.log.Info("uploaded file", zap.String("filename", out.Filename))
	return &out, nil
}

// TriggerIndex calls POST /v1/index. directory may be empty, which is sent as
// null per the contract.
func (c *Client) TriggerIndex(ctx context.Context, directory string) (*IndexResponse, error) {
	var body IndexRequest
	if directory != "" {
		body.Directory = &directory
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/index", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index request failed: %s", decodeDetail(resp.Body, "index request failed"))
	}

	var out IndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode index response: %w", err)
	}
	return &out, nil
}

// Documents calls GET /v1/documents and returns the authoritative list.
func (c *Client) Documents(ctx context.Context) ([]DocumentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/documents", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch documents failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch documents failed: status %d", resp.StatusCode)
	}

	var out DocumentListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}
	return out.Documents, nil
}

// Delete calls DELETE /v1/documents/{filename} with the filename
// percent-encoded.
func (c *Client) Delete(ctx context.Context, filename string) (*DeleteResponse, error) {
	endpoint := c.baseURL + "/v1/documents/" + url.PathEscape(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("delete failed: %s", decodeDetail(resp.Body, "delete failed"))
	}

	var out DeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode delete response: %w", err)
	}
	c.log.Info("deleted document",
		zap.String("filename", out.Filename),
		zap.Int("deleted_vectors", out.DeletedVectors),
		zap.Int("deleted_records", out.DeletedRecords))
	return &out, nil
}

// decodeDetail extracts the backend's {detail} from an error body. A string
// detail is returned verbatim; anything else comes back in its serialized
// form. An undecodable body degrades to fallback.
func decodeDetail(r io.Reader, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}

// progressReader reports cumulative read progress as a percentage.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent != p.last {
			p.last = percent
			p.report(percent)
		}
	}
	return n, err
}
