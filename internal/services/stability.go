package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/desertthunder/autoshorts/internal/shared"
)

const defaultStabilityBaseURL = "https://api.stability.ai"

// StabilityService implements [ImageGenerator] with Stable Image Core.
type StabilityService struct {
	api *APIService
}

// NewStabilityService creates an image generator authenticated with apiKey.
func NewStabilityService(apiKey string, cfg shared.StabilityConfig, client *http.Client) (*StabilityService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: STABILITY_API_KEY is not set", shared.ErrConfig)
	}

	api := NewAPIService(cmpOr(cfg.BaseURL, defaultStabilityBaseURL), client).
		WithHeader("Authorization", "Bearer "+apiKey).
		WithHeader("Accept", "image/*")
	return &StabilityService{api: api}, nil
}

// AspectRatio reduces width x height to the closest ratio the endpoint accepts.
func AspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "9:16"
	}
	ratios := []struct {
		name string
		w, h float64
	}{
		{"21:9", 21, 9}, {"16:9", 16, 9}, {"3:2", 3, 2}, {"5:4", 5, 4}, {"1:1", 1, 1},
		{"4:5", 4, 5}, {"2:3", 2, 3}, {"9:16", 9, 16}, {"9:21", 9, 21},
	}

	target := float64(width) / float64(height)
	best, bestDiff := ratios[0].name, -1.0
	for _, r := range ratios {
		diff := target - r.w/r.h
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = r.name, diff
		}
	}
	return best
}

// Generate returns a JPEG for prompt framed at the aspect ratio of width x height.
func (s *StabilityService) Generate(ctx context.Context, prompt string, width, height int) (io.ReadCloser, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"prompt":        prompt,
		"output_format": "jpeg",
		"aspect_ratio":  AspectRatio(width, height),
	} {
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	headers := http.Header{"Content-Type": {form.FormDataContentType()}}
	resp, err := s.api.Stream(ctx, http.MethodPost, "/v2beta/stable-image/generate/core", &buf, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, (&APIResponse{StatusCode: resp.StatusCode, Body: data}).Err("stability")
	}
	return resp.Body, nil
}
