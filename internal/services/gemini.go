package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	apiKey string
	model  string
	api    *APIService
}

// NewGeminiClient constructs a client with the provided API key. An empty model uses [DefaultGeminiModel].
func NewGeminiClient(apiKey, model string, client *http.Client) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", shared.ErrConfig)
	}
	if model = normalizeModel(model); model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
		api:    NewAPIService(defaultGeminiBaseURL, client),
	}, nil
}

// WithBaseURL points the client at another endpoint.
func (c *GeminiClient) WithBaseURL(baseURL string) *GeminiClient {
	c.api.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *GeminiClient) Name() string { return "gemini" }

// GenerateText returns the first candidate's text for prompt.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{
				Role:  "user",
				Parts: []part{{Text: prompt}},
			},
		},
	}

	path := fmt.Sprintf("/models/%s:generateContent?key=%s", c.model, url.QueryEscape(c.apiKey))
	resp, err := c.api.PostJSON(ctx, path, reqBody)
	if err != nil {
		return "", err
	}
	if err := resp.Err("gemini"); err != nil {
		return "", err
	}

	var out generateResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response from gemini", shared.ErrAPIRequest)
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
