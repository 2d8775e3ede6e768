package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	// DefaultCompatibleBaseURL is used by openai-compatible when
	// OPENAI_BASE_URL is unset.
	DefaultCompatibleBaseURL = "https://openrouter.ai/api/v1"
	xaiBaseURL               = "https://api.x.ai/v1"

	refererHeader = "https://github.com/dshills/aipp3"
	titleHeader   = "ai-pp3"
)

// openaiProvider implements Provider using the OpenAI SDK. The same client
// serves OpenAI, OpenAI-compatible gateways and xAI; only the base URL and
// key differ.
type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(model string) (Provider, error) {
	apiKey, err := requireEnv("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiProvider{client: client, model: model}, nil
}

func newCompatibleProvider(model string) (Provider, error) {
	apiKey, err := requireEnv("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultCompatibleBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHeader("HTTP-Referer", refererHeader),
		option.WithHeader("X-Title", titleHeader),
	)
	return &openaiProvider{client: client, model: model}, nil
}

func newXAIProvider(model string) (Provider, error) {
	apiKey, err := requireEnv("XAI_API_KEY")
	if err != nil {
		return nil, err
	}
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(xaiBaseURL))
	return &openaiProvider{client: client, model: model}, nil
}

// dataURL encodes the request image as a base64 data URL.
func dataURL(req Request) string {
	return fmt.Sprintf("data:%s;base64,%s", req.mediaType(), base64.StdEncoding.EncodeToString(req.Image))
}

func (p *openaiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.check(); err != nil {
		return "", err
	}
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(req.Prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL(req),
				}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat.completions.new: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
