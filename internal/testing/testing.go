// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// MockText is a test double for [services.TextGenerator] returning canned replies in order.
//
// The last reply repeats once the list is exhausted.
type MockText struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Prompts []string
}

func (m *MockText) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", errors.New("no reply configured")
	}
	reply := m.Replies[0]
	if len(m.Replies) > 1 {
		m.Replies = m.Replies[1:]
	}
	return reply, nil
}

func (m *MockText) Name() string { return "mock" }

// MockSpeech is a test double for [services.SpeechSynthesizer]. Body, when set, is returned instead of fake audio.
type MockSpeech struct {
	mu     sync.Mutex
	Err    error
	Body   io.ReadCloser
	Texts  []string
	Voices []string
}

func (m *MockSpeech) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Texts = append(m.Texts, text)
	m.Voices = append(m.Voices, voiceID)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Body != nil {
		return m.Body, nil
	}
	return io.NopCloser(strings.NewReader("ID3 fake mp3")), nil
}

// MockImages is a test double for [services.ImageGenerator].
//
// FailOn is the 1-based call that fails with Err. Zero never fails.
type MockImages struct {
	mu      sync.Mutex
	FailOn  int
	Err     error
	Block   bool
	Prompts []string
}

func (m *MockImages) Generate(ctx context.Context, prompt string, width, height int) (io.ReadCloser, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	n := len(m.Prompts)
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.FailOn > 0 && n == m.FailOn {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, fmt.Errorf("%w: image request %d rejected", shared.ErrAPIRequest, n)
	}
	return io.NopCloser(bytes.NewReader([]byte{0xFF, 0xD8, 0xFF, 0xD9})), nil
}

// Calls returns how many images were requested.
func (m *MockImages) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// MemoryObjectStore is an in-memory [services.ObjectStore].
type MemoryObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Deleted []string
	PutErr  error
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{Objects: make(map[string][]byte)}
}

func (m *MemoryObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return nil
}

func (m *MemoryObjectStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.example.com/%s?expires=%d", key, int(expiry.Seconds())), nil
}

func (m *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

// MemoryCredentials is an in-memory credential source and sink keyed by user and platform.
type MemoryCredentials struct {
	mu    sync.Mutex
	creds map[string]*models.PlatformCredential
}

func NewMemoryCredentials(creds ...*models.PlatformCredential) *MemoryCredentials {
	m := &MemoryCredentials{creds: make(map[string]*models.PlatformCredential)}
	for _, c := range creds {
		_ = m.Upsert(c)
	}
	return m
}

func credKey(userID int64, p models.Platform) string { return fmt.Sprintf("%d/%s", userID, p) }

func (m *MemoryCredentials) Get(userID int64, platform models.Platform) (*models.PlatformCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credKey(userID, platform)]
	if !ok {
		return nil, fmt.Errorf("%w: %s for user %d", shared.ErrMissingCredentials, platform, userID)
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryCredentials) Upsert(cred *models.PlatformCredential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := credKey(cred.UserID, cred.Platform)
	if existing, ok := m.creds[key]; ok {
		existing.Merge(cred)
		return nil
	}
	cp := *cred
	m.creds[key] = &cp
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
