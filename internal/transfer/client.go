package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

// Client talks to the portal backend. It never retries; callers own retry policy.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = common.LoggerOrDefault(c.logger)
	return c
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

// FormField is a plain multipart field.
type FormField struct {
	Name  string
	Value string
}

// FilePart is a file-bearing multipart field.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     io.Reader
}

// Multipart is a file-bearing request body. Fields are written in order, files last.
type Multipart struct {
	Fields []FormField
	Files  []FilePart
}

func (m *Multipart) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range m.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	for _, fp := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(fp.FieldName), escapeQuotes(fp.FileName)))
		ct := fp.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", fp.FieldName, err)
		}
		if _, err := io.Copy(part, fp.Content); err != nil {
			return nil, "", fmt.Errorf("copy file %s: %w", fp.FileName, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Send issues method path with body and returns the raw response body on 2xx.
// body may be nil, a *Multipart, or any JSON-marshalable value. Failures are
// returned as *Error.
func (c *Client) Send(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	var (
		reader      io.Reader
		contentType string
		length      int
	)
	switch b := body.(type) {
	case nil:
	case *Multipart:
		buf, ct, err := b.encode()
		if err != nil {
			c.logger.Error("transfer.http.encode_error", "req_id", reqID, "path", path, "error", err)
			return nil, &Error{Method: method, Path: path, RequestID: reqID, Cause: err}
		}
		reader, contentType, length = buf, ct, buf.Len()
	default:
		bs, err := json.Marshal(b)
		if err != nil {
			c.logger.Error("transfer.http.encode_error", "req_id", reqID, "path", path, "error", err)
			return nil, &Error{Method: method, Path: path, RequestID: reqID, Cause: fmt.Errorf("encode json: %w", err)}
		}
		reader, contentType, length = bytes.NewReader(bs), "application/json", len(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Method: method, Path: path, RequestID: reqID, Cause: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if key := common.IdempotencyKeyFromContext(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	c.logger.Debug("transfer.http.request",
		"req_id", reqID,
		"method", method,
		"path", path,
		"content_length", length,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("transfer.http.send_error", "req_id", reqID, "path", path, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, &Error{Method: method, Path: path, RequestID: reqID, Cause: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("transfer.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, readErr := io.ReadAll(resp.Body)

	c.logger.Info("transfer.http.response",
		"req_id", reqID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &Error{
			Method:    method,
			Path:      path,
			Status:    resp.StatusCode,
			RequestID: reqID,
			Message:   serverMessage(raw),
		}
	}
	if readErr != nil {
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, RequestID: reqID, Cause: readErr}
	}
	return raw, nil
}

// serverMessage pulls the string `error` field out of an error body.
func serverMessage(raw []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Error) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(body.Error, &msg); err != nil {
		return ""
	}
	return strings.TrimSpace(msg)
}

func decode[T any](raw []byte, what string) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w: %v", what, common.ErrMalformedPayload, err)
	}
	return out, nil
}

// decodeRecord accepts a bare record or one wrapped as {"<key>": {...}, "message": "..."}.
func decodeRecord[T any](raw []byte, key string) (T, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err == nil {
		_, bare := env["id"]
		if inner, ok := env[key]; ok && !bare && len(inner) > 0 && inner[0] == '{' {
			raw = inner
		}
	}
	return decode[T](raw, key)
}
