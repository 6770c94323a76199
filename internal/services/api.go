// Raw HTTP plumbing shared by the REST collaborators
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/autoshorts/internal/shared"
)

// DefaultHTTPTimeout bounds every collaborator request that does not set its own client.
const DefaultHTTPTimeout = 60 * time.Second

// APIService performs raw HTTP requests against one base URL with a fixed set of headers.
type APIService struct {
	baseURL    string
	headers    http.Header
	httpClient *http.Client
}

// NewAPIService creates an [APIService]. A nil client gets [DefaultHTTPTimeout].
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    make(http.Header),
		httpClient: client,
	}
}

// WithHeader sets a header sent on every request.
func (a *APIService) WithHeader(key, value string) *APIService {
	a.headers.Set(key, value)
	return a
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns nil for a 2xx response and an [shared.ErrAPIRequest] error naming service otherwise.
func (r *APIResponse) Err(service string) error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s returned status %d: %s", shared.ErrAPIRequest, service, r.StatusCode, errorDetail(r.Body))
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Do sends a request to baseURL+path and buffers the response.
//
// Transport failures wrap [shared.ErrAPIRequest], or [shared.ErrTimeout] when ctx expired.
func (a *APIService) Do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*APIResponse, error) {
	resp, err := a.Stream(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// Stream sends a request and returns the unread response. The caller closes the body.
func (a *APIService) Stream(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	req, err := a.newRequest(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, req)
}

// doSized sends body with an explicit Content-Length, as needed for files.
func (a *APIService) doSized(ctx context.Context, method, path string, body io.Reader, size int64, headers http.Header) (*APIResponse, error) {
	req, err := a.newRequest(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size

	resp, err := a.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}
	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

func (a *APIService) newRequest(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range a.headers {
		req.Header[k] = vs
	}
	for k, vs := range headers {
		req.Header[k] = vs
	}
	return req, nil
}

func (a *APIService) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrTimeout, req.Method, req.URL.Path, ctx.Err())
		}
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	return resp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Do(ctx, http.MethodGet, path, nil, nil)
}

// PostJSON marshals payload and POSTs it to path.
func (a *APIService) PostJSON(ctx context.Context, path string, payload any) (*APIResponse, error) {
	return a.postJSONWithHeaders(ctx, path, payload, nil)
}

func (a *APIService) postJSONWithHeaders(ctx context.Context, path string, payload any, headers http.Header) (*APIResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	h := http.Header{"Content-Type": {"application/json"}}
	for k, vs := range headers {
		h[k] = vs
	}
	return a.Do(ctx, http.MethodPost, path, bytes.NewReader(data), h)
}

// PostForm POSTs url-encoded values to path.
func (a *APIService) PostForm(ctx context.Context, path string, values url.Values) (*APIResponse, error) {
	return a.Do(ctx, http.MethodPost, path, strings.NewReader(values.Encode()),
		http.Header{"Content-Type": {"application/x-www-form-urlencoded"}})
}

func (a *APIService) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return a.baseURL + path
}

// errorDetail pulls a human readable message out of common error envelopes.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  []any  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			return envelope.Message
		case envelope.Detail != nil:
			return fmt.Sprint(envelope.Detail)
		case envelope.Error != nil:
			if m, ok := envelope.Error.(map[string]any); ok {
				if msg, ok := m["message"].(string); ok {
					return msg
				}
			}
			return fmt.Sprint(envelope.Error)
		case len(envelope.Errors) > 0:
			return fmt.Sprint(envelope.Errors...)
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
