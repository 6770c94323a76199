// Utilities for parsing cURL commands copied from browser DevTools.
package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRegex = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"|--cookie\s+'([^']+)'|--cookie\s+"([^"]+)"`)
	curlURLRegex    = regexp.MustCompile(`curl\s+(?:-X\s+\w+\s+)?'([^']+)'|curl\s+(?:-X\s+\w+\s+)?"([^"]+)"|curl\s+(?:-X\s+\w+\s+)?(https?://\S+)`)
)

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// SessionCookie is the stored form of one browser cookie.
type SessionCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(filepath string) (*CurlHeaders, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts the URL, headers and cookie string.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "^\r\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	parsed := &CurlHeaders{Headers: make(map[string]string)}

	if m := curlURLRegex.FindStringSubmatch(curlCmd); m != nil {
		parsed.URL = firstGroup(m)
	}

	for _, match := range curlHeaderRegex.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if parsed.Cookie == "" {
				parsed.Cookie = value
			}
			continue
		}
		parsed.Headers[key] = value
	}

	// -b wins over a cookie header
	if m := curlCookieRegex.FindStringSubmatch(curlCmd); m != nil {
		parsed.Cookie = firstGroup(m)
	}

	if len(parsed.Headers) == 0 && parsed.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return parsed, nil
}

// Cookies splits the cookie string into [SessionCookie] values scoped to the request host.
func (c *CurlHeaders) Cookies() []SessionCookie {
	if c.Cookie == "" {
		return nil
	}

	var domain string
	if u, err := url.Parse(c.URL); err == nil {
		domain = u.Hostname()
	}

	parsed, err := http.ParseCookie(strings.TrimRight(strings.TrimSpace(c.Cookie), "; "))
	if err != nil {
		return nil
	}

	cookies := make([]SessionCookie, 0, len(parsed))
	for _, ck := range parsed {
		cookies = append(cookies, SessionCookie{Name: ck.Name, Value: ck.Value, Domain: domain})
	}
	return cookies
}

// CookiesJSON encodes [CurlHeaders.Cookies] for storage in a credential record.
func (c *CurlHeaders) CookiesJSON() (string, error) {
	cookies := c.Cookies()
	if len(cookies) == 0 {
		return "", fmt.Errorf("%w: no cookies in curl command", ErrInvalidInput)
	}

	data, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("failed to encode cookies: %w", err)
	}
	return string(data), nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
