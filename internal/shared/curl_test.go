package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantURL     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'Authorization: Bearer token123' https://api.example.com`,
			wantURL:     "",
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:        "quoted url and double quoted header",
			curlCmd:     `curl "https://www.instagram.com/api/v1/" -H "Authorization: Bearer token123"`,
			wantURL:     "https://www.instagram.com/api/v1/",
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl 'https://www.tiktok.com/upload' -b 'sessionid=abc123'`,
			wantURL:     "https://www.tiktok.com/upload",
			wantHeaders: map[string]string{},
			wantCookie:  "sessionid=abc123",
		},
		{
			name:        "cookie header is excluded from regular headers",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'Accept: */*' https://api.example.com`,
			wantHeaders: map[string]string{"Accept": "*/*"},
			wantCookie:  "session=abc123",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl 'https://www.tiktok.com/api' \
  -H 'accept: */*' \
  -H 'cookie: sessionid=abc; tt_csrf_token=xyz'`,
			wantURL:     "https://www.tiktok.com/api",
			wantHeaders: map[string]string{"accept": "*/*"},
			wantCookie:  "sessionid=abc; tt_csrf_token=xyz",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://api.example.com`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCurlCommand([]byte(tc.curlCmd))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tc.wantURL != "" && got.URL != tc.wantURL {
				t.Errorf("URL = %q, want %q", got.URL, tc.wantURL)
			}
			if got.Cookie != tc.wantCookie {
				t.Errorf("Cookie = %q, want %q", got.Cookie, tc.wantCookie)
			}
			if len(got.Headers) != len(tc.wantHeaders) {
				t.Errorf("got %d headers, want %d: %v", len(got.Headers), len(tc.wantHeaders), got.Headers)
			}
			for k, v := range tc.wantHeaders {
				if got.Headers[k] != v {
					t.Errorf("header %q = %q, want %q", k, got.Headers[k], v)
				}
			}
		})
	}
}

func TestCurlCookies(t *testing.T) {
	t.Run("splits cookies and scopes them to the host", func(t *testing.T) {
		c := &CurlHeaders{URL: "https://www.tiktok.com/upload?lang=en", Cookie: "sessionid=abc; tt_csrf_token=xyz; "}

		cookies := c.Cookies()
		if len(cookies) != 2 {
			t.Fatalf("expected 2 cookies, got %d", len(cookies))
		}
		if cookies[0].Name != "sessionid" || cookies[0].Value != "abc" {
			t.Errorf("unexpected first cookie: %+v", cookies[0])
		}
		if cookies[1].Domain != "www.tiktok.com" {
			t.Errorf("expected domain www.tiktok.com, got %q", cookies[1].Domain)
		}
	})

	t.Run("CookiesJSON", func(t *testing.T) {
		c := &CurlHeaders{URL: "https://example.com", Cookie: "a=1"}

		got, err := c.CookiesJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(got, `"name":"a"`) || !strings.Contains(got, `"domain":"example.com"`) {
			t.Errorf("unexpected JSON: %s", got)
		}
	})

	t.Run("CookiesJSON without cookies", func(t *testing.T) {
		c := &CurlHeaders{Headers: map[string]string{"Accept": "*/*"}}

		if _, err := c.CookiesJSON(); err == nil {
			t.Error("expected error when there are no cookies")
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("reads command from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "curl.sh")
		if err := os.WriteFile(path, []byte(`curl 'https://example.com' -b 'a=1'`), 0600); err != nil {
			t.Fatalf("failed to write curl file: %v", err)
		}

		got, err := ParseCurlFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Cookie != "a=1" {
			t.Errorf("expected cookie a=1, got %q", got.Cookie)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseCurlFile(filepath.Join(t.TempDir(), "missing.sh")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
