// Package httpcall issues one request to one external provider described by a
// Spec and turns the exchange into either an extracted value or a classified
// failure from the retry package.
package httpcall

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ownlingo/unibot/assistant/retry"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrExtraction means the provider answered but the expected field was absent or empty
var ErrExtraction = errors.New("response field missing")

// DefaultMaxBody caps how much of a provider response is read
const DefaultMaxBody int64 = 10 << 20

// Encoding selects how request fields travel to the provider
type Encoding int

const (
	// EncodingJSON sends fields as a JSON object body
	EncodingJSON Encoding = iota
	// EncodingForm sends fields as an application/x-www-form-urlencoded body
	EncodingForm
	// EncodingQuery sends fields in the query string with an empty body
	EncodingQuery
	// EncodingPath sends nothing beyond the expanded endpoint template
	EncodingPath
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingForm:
		return "form"
	case EncodingQuery:
		return "query"
	case EncodingPath:
		return "path"
	default:
		return "unknown"
	}
}

// Classifier maps a failed status and body to a provider error. Returning nil
// falls through to the default RetryableError.
type Classifier func(statusCode int, body []byte) error

// Spec describes one provider endpoint. Specs are immutable once built.
type Spec struct {
	Name     string
	Method   string
	Endpoint string // {name} placeholders are replaced with path-escaped Request.Path values
	Encoding Encoding
	Extract  []string // gjson paths tried in order; the first non-empty value wins
	Header   map[string]string
	Classify Classifier
	MaxBody  int64
}

// Field is one ordered request parameter
type Field struct {
	Key   string
	Value any
}

// Request carries the per-call values for a Spec
type Request struct {
	Path   map[string]string
	Fields []Field
}

// Response is a successful provider exchange
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Value       gjson.Result
}

// Text returns the extracted value as a string
func (r *Response) Text() string {
	return r.Value.String()
}

// Client performs provider calls over a shared *http.Client
type Client struct {
	http *http.Client
}

// NewHTTPClient returns an instrumented client with the given timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewClient wraps hc; a nil hc gets an instrumented client with a 30s timeout
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = NewHTTPClient(30 * time.Second)
	}
	return &Client{http: hc}
}

// HTTPClient exposes the underlying client for SDKs that accept one
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Call issues the request described by spec and req
func (c *Client) Call(ctx context.Context, spec Spec, req Request) (*Response, error) {
	httpReq, err := build(ctx, spec, req)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", spec.Name, err)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// *url.Error embeds the full URL, which may carry a key in its query
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &retry.RetryableError{Err: fmt.Errorf("%s: %w", spec.Name, err)}
	}
	defer httpResp.Body.Close()

	limit := spec.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, limit+1))
	if err != nil {
		return nil, &retry.RetryableError{Err: fmt.Errorf("%s: read body: %w", spec.Name, err), StatusCode: httpResp.StatusCode}
	}
	if int64(len(body)) > limit {
		return nil, &retry.RetryableError{Err: fmt.Errorf("%s: response exceeds %d bytes", spec.Name, limit), StatusCode: httpResp.StatusCode}
	}

	resp := &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		if spec.Classify != nil {
			if err := spec.Classify(httpResp.StatusCode, body); err != nil {
				return resp, err
			}
		}
		return resp, retry.FromStatus(
			fmt.Errorf("%s: upstream status %d", spec.Name, httpResp.StatusCode),
			httpResp.StatusCode, snippet(body))
	}

	if len(spec.Extract) == 0 {
		return resp, nil
	}
	for _, path := range spec.Extract {
		value := gjson.GetBytes(body, path)
		if value.Exists() && strings.TrimSpace(value.String()) != "" {
			resp.Value = value
			return resp, nil
		}
	}
	return resp, &retry.RetryableError{
		Err:        fmt.Errorf("%s: %w (%s)", spec.Name, ErrExtraction, strings.Join(spec.Extract, "|")),
		StatusCode: httpResp.StatusCode,
		Body:       snippet(body),
	}
}

func build(ctx context.Context, spec Spec, req Request) (*http.Request, error) {
	endpoint := expand(spec.Endpoint, req.Path)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}

	method := spec.Method
	var (
		body        io.Reader
		contentType string
	)

	switch spec.Encoding {
	case EncodingJSON:
		payload := []byte("{}")
		for _, f := range req.Fields {
			payload, err = sjson.SetBytes(payload, f.Key, f.Value)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", f.Key, err)
			}
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
		if method == "" {
			method = http.MethodPost
		}
	case EncodingForm:
		form := url.Values{}
		for _, f := range req.Fields {
			form.Add(f.Key, fmt.Sprint(f.Value))
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
		if method == "" {
			method = http.MethodPost
		}
	case EncodingQuery:
		q := u.Query()
		for _, f := range req.Fields {
			q.Add(f.Key, fmt.Sprint(f.Value))
		}
		u.RawQuery = q.Encode()
	case EncodingPath:
	default:
		return nil, fmt.Errorf("unknown encoding %d", spec.Encoding)
	}
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range spec.Header {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func expand(template string, values map[string]string) string {
	if len(values) == 0 {
		return template
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", url.PathEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func snippet(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// QuotaAware classifies HTTP 429 responses mentioning quota exhaustion as a
// QuotaError for group; every other failure stays retryable.
func QuotaAware(group string) Classifier {
	return func(statusCode int, body []byte) error {
		if IsQuotaBody(statusCode, body) {
			return &retry.QuotaError{
				Err:        fmt.Errorf("%s quota exhausted: %s", group, snippet(body)),
				StatusCode: statusCode,
				Group:      group,
			}
		}
		return nil
	}
}

// IsQuotaBody reports whether a response is the quota-exhausted shape
func IsQuotaBody(statusCode int, body []byte) bool {
	if statusCode != http.StatusTooManyRequests {
		return false
	}
	text := string(body)
	return strings.Contains(text, "quota") || strings.Contains(text, "RESOURCE_EXHAUSTED")
}
