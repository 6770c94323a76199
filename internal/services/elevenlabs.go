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

	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	defaultElevenLabsModel   = "eleven_multilingual_v2"
	defaultElevenLabsFormat  = "mp3_44100_128"
)

// ElevenLabsService implements [SpeechSynthesizer] with the ElevenLabs text-to-speech endpoint.
type ElevenLabsService struct {
	api          *APIService
	modelID      string
	outputFormat string
}

// NewElevenLabsService creates a synthesizer. Empty settings fall back to the defaults.
func NewElevenLabsService(apiKey string, cfg shared.ElevenLabsConfig, client *http.Client) (*ElevenLabsService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ELEVENLABS_API_KEY is not set", shared.ErrConfig)
	}

	baseURL := cmpOr(cfg.BaseURL, defaultElevenLabsBaseURL)
	return &ElevenLabsService{
		api:          NewAPIService(baseURL, client).WithHeader("xi-api-key", apiKey),
		modelID:      cmpOr(cfg.ModelID, defaultElevenLabsModel),
		outputFormat: cmpOr(cfg.OutputFormat, defaultElevenLabsFormat),
	}, nil
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize streams MP3 audio for text spoken by voiceID.
func (s *ElevenLabsService) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("%w: voice id is required", shared.ErrValidation)
	}

	body, err := json.Marshal(speechRequest{Text: text, ModelID: s.modelID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	path := fmt.Sprintf("/v1/text-to-speech/%s?output_format=%s", url.PathEscape(voiceID), url.QueryEscape(s.outputFormat))
	headers := http.Header{
		"Content-Type": {"application/json"},
		"Accept":       {"audio/mpeg"},
	}

	resp, err := s.api.Stream(ctx, http.MethodPost, path, bytes.NewReader(body), headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, (&APIResponse{StatusCode: resp.StatusCode, Body: data}).Err("elevenlabs")
	}
	return resp.Body, nil
}

func cmpOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
