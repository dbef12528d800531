package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultAIModel matches the model the chat room was tuned against.
const DefaultAIModel = "gpt-3.5-turbo"

const assistantPrompt = "你是AI助手川小农，一个友好、专业的中文助手。请用简洁、清晰的语言回答用户问题。"

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// OpenAIChat answers questions with a chat completion. It implements command.Replier.
type OpenAIChat struct {
	client openai.Client
	model  string
}

// NewOpenAIChat builds the client. Retries are disabled: the command has its own deadline
// and a local fallback.
func NewOpenAIChat(cfg OpenAIConfig) *OpenAIChat {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAIModel
	}
	return &OpenAIChat{client: openai.NewClient(opts...), model: model}
}

// Reply sends the question with the assistant persona prompt.
func (c *OpenAIChat) Reply(ctx context.Context, question string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(assistantPrompt),
			openai.UserMessage(question),
		},
		MaxTokens:   openai.Int(500),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("ai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("ai chat: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
