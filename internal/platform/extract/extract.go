package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/retry"
)

// ExtractionError indicates the extraction service could not produce text
// from the supplied binary (corrupt or unsupported content). It is permanent:
// retrying the same bytes cannot succeed.
type ExtractionError struct {
	Filename string
	Reason   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Filename, e.Reason)
}

func (e *ExtractionError) Transient() bool { return false }

// serviceError covers transport-level failures from the extraction service.
// 5xx and throttling responses are transient.
type serviceError struct {
	status int
	body   string
}

func (e *serviceError) Error() string {
	return fmt.Sprintf("extraction service returned %d: %s", e.status, e.body)
}

func (e *serviceError) Transient() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// TextExtractor converts uploaded binary content into plain text. The HTTP
// implementation calls the external extraction service; tests substitute a
// fake.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Client is an HTTP client for the external text-extraction service.
type Client struct {
	baseURL  string
	http     *http.Client
	attempts int
}

func NewClient(baseURL string, timeout time.Duration, attempts int) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		attempts: attempts,
	}
}

// Extract posts the binary to the extraction service and returns the plain
// text it produced. Transient service failures are retried with exponential
// backoff; 422 responses surface as *ExtractionError.
func (c *Client) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	var text string

	err := retry.Do(ctx, c.attempts, 500*time.Millisecond, func() error {
		var err error
		text, err = c.extractOnce(ctx, filename, content)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) extractOnce(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &buf)
	if err != nil {
		return "", fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call extraction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read extraction response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return string(body), nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return "", &ExtractionError{Filename: filename, Reason: string(body)}
	default:
		return "", &serviceError{status: resp.StatusCode, body: string(body)}
	}
}
