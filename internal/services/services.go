package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// TextGenerator returns the model's reply to a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Name() string
}

// SpeechSynthesizer returns encoded audio for text read by voiceID. The caller closes the reader.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

// ImageGenerator returns an encoded image for prompt at roughly width x height. The caller closes the reader.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) (io.ReadCloser, error)
}

// ObjectStore provides access to object storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Video is what a [Uploader] posts.
type Video struct {
	Path    string
	Title   string
	Caption string
}

// Uploader posts a finished video to one platform with a user's credentials.
type Uploader interface {
	Platform() models.Platform
	Upload(ctx context.Context, cred *models.PlatformCredential, video Video) (*PostResult, error)
}

// CredentialSource reads stored credentials. [repositories.CredentialRepository] satisfies it.
type CredentialSource interface {
	Get(userID int64, platform models.Platform) (*models.PlatformCredential, error)
}

// CredentialSink persists refreshed credentials.
type CredentialSink interface {
	Upsert(cred *models.PlatformCredential) error
}

// NewTextGenerator builds the provider named by cfg.TextProvider.
func NewTextGenerator(cfg shared.PipelineConfig, secrets shared.Secrets) (TextGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TextProvider)) {
	case "", "gemini":
		return NewGeminiClient(secrets.GoogleAPIKey, cfg.GeminiModel, nil)
	case "openai":
		return NewOpenAIClient(secrets.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("%w: unknown text provider %q (want gemini or openai)", shared.ErrConfig, cfg.TextProvider)
	}
}
