package extraction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// OpenAIConfig is the explicit client configuration; nothing is read from
// the environment.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
}

// OpenAIExtractor asks a chat model for a upn.Record constrained by a strict
// JSON schema derived from the struct.
type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	schema  *jsonschema.Definition
	logger  *zap.Logger
}

func NewOpenAIExtractor(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	schema, err := jsonschema.GenerateSchemaForType(upn.Record{})
	if err != nil {
		return nil, fmt.Errorf("openai: record schema: %w", err)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIExtractor{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		schema:  schema,
		logger:  logger,
	}, nil
}

func (e *OpenAIExtractor) Extract(ctx context.Context, text string) (*upn.Record, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(text)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "invoice_extraction",
				Schema: e.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", ErrExtraction, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrExtraction)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: model refused: %s", ErrExtraction, msg.Refusal)
	}

	var rec upn.Record
	if err := e.schema.Unmarshal(msg.Content, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %w", ErrExtraction, err)
	}
	e.logger.Debug("record extracted",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("took", time.Since(start)))
	return &rec, nil
}
