package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/autoshorts/internal/shared"
	tu "github.com/desertthunder/autoshorts/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient.Timeout != DefaultHTTPTimeout {
				t.Errorf("expected default timeout, got %v", srv.httpClient.Timeout)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/test" {
					t.Errorf("expected path '/test', got %s", r.URL.Path)
				}
				if r.Header.Get("X-Key") != "secret" {
					t.Errorf("expected default header to be sent")
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil).WithHeader("X-Key", "secret")
			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.OK() || resp.Err("test") != nil {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}

			var body map[string]string
			if err := resp.Decode(&body); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if body["status"] != "success" {
				t.Errorf("unexpected body %v", body)
			}
		})

		t.Run("Error Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"slow down"}}`))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no transport error, got %v", err)
			}

			err = resp.Err("vendor")
			if !errors.Is(err, shared.ErrCollaborator) {
				t.Fatalf("expected collaborator error, got %v", err)
			}
			if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "slow down") {
				t.Errorf("expected status and message in error, got %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			_, err := srv.Get(context.Background(), "/test\x00invalid")

			if err == nil {
				t.Fatal("expected error for invalid URL")
			}
			if !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected API request error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read error, got %v", err)
			}
		})

		t.Run("Context Deadline", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			}))
			defer server.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			_, err := NewAPIService(server.URL, nil).Get(ctx, "/slow")
			if !errors.Is(err, shared.ErrTimeout) {
				t.Errorf("expected timeout error, got %v", err)
			}
		})
	})

	t.Run("PostJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil).PostJSON(context.Background(), "/echo", map[string]int{"n": 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != `{"n":1}` {
			t.Errorf("unexpected echo %s", resp.Body)
		}
	})

	t.Run("PostForm", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			w.Write([]byte(r.PostForm.Get("caption")))
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil).PostForm(context.Background(), "/", url.Values{"caption": {"hello world"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "hello world" {
			t.Errorf("unexpected body %s", resp.Body)
		}
	})

	t.Run("absolute paths bypass base URL", func(t *testing.T) {
		srv := NewAPIService("http://example.com", nil)
		if got := srv.url("https://upload.example.com/session"); got != "https://upload.example.com/session" {
			t.Errorf("url = %s", got)
		}
		if got := srv.url("/v1"); got != "http://example.com/v1" {
			t.Errorf("url = %s", got)
		}
	})
}

func TestErrorDetail(t *testing.T) {
	tt := []struct {
		name string
		body string
		want string
	}{
		{name: "message", body: `{"message":"bad voice"}`, want: "bad voice"},
		{name: "detail", body: `{"detail":"quota"}`, want: "quota"},
		{name: "nested error", body: `{"error":{"message":"invalid key"}}`, want: "invalid key"},
		{name: "errors list", body: `{"errors":["nsfw"]}`, want: "nsfw"},
		{name: "plain text", body: "  Bad Gateway  ", want: "Bad Gateway"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorDetail([]byte(tc.body)); got != tc.want {
				t.Errorf("errorDetail = %q, want %q", got, tc.want)
			}
		})
	}
}
