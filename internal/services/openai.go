package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() any {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var scriptSchema = GenerateSchema[models.Script]()

// OpenAIClient generates scripts through chat completions constrained to the [models.Script] schema.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIClient builds a client for apiKey. Extra options such as [option.WithBaseURL] are passed through.
func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", shared.ErrConfig)
	}
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{client: openai.NewClient(opts...), model: openai.ChatModel(model)}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// GenerateText returns the JSON content of the first choice.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "script",
		Description: openai.String("A short vertical video script split into scenes"),
		Schema:      scriptSchema,
		Strict:      openai.Bool(true),
	}

	chatCompletion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: openai: %v", shared.ErrTimeout, ctx.Err())
		}
		return "", fmt.Errorf("%w: openai: %v", shared.ErrAPIRequest, err)
	}

	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from openai", shared.ErrAPIRequest)
	}

	raw := chatCompletion.Choices[0].Message.Content
	if !json.Valid([]byte(raw)) {
		return "", fmt.Errorf("%w: openai returned invalid JSON", shared.ErrAPIRequest)
	}
	return raw, nil
}
