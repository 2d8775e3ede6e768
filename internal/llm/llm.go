// Package llm sends a prompt and one preview image to a vision-capable model
// and returns the model's text reply.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultMediaType is used when a Request does not name one.
const DefaultMediaType = "image/jpeg"

// ErrEmptyImage is returned when a Request carries no image bytes.
var ErrEmptyImage = errors.New("llm: request has no image")

// Request is a single multimodal completion request.
type Request struct {
	Prompt      string
	Image       []byte
	MediaType   string // e.g. "image/jpeg"; DefaultMediaType when empty
	MaxTokens   int
	Temperature float64
}

func (r Request) mediaType() string {
	if r.MediaType == "" {
		return DefaultMediaType
	}
	return r.MediaType
}

func (r Request) check() error {
	if len(r.Image) == 0 {
		return ErrEmptyImage
	}
	return nil
}

// Provider is the interface for vision model backends.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// NewProvider is the factory for creating providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

type constructor func(model string) (Provider, error)

var constructors = map[string]constructor{
	"anthropic":         newAnthropicProvider,
	"openai":            newOpenAIProvider,
	"openai-compatible": newCompatibleProvider,
	"xai":               newXAIProvider,
	"google":            newGoogleProvider,
}

// Names returns the supported provider names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for k := range constructors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(providerName, model string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(providerName))
	if key == "" {
		key = "openai"
	}
	c, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q (available: %s)", providerName, strings.Join(Names(), ", "))
	}
	return c(model)
}

// requireEnv returns the value of the named variable or an error naming it.
func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("llm: %s environment variable not set", name)
	}
	return v, nil
}

// anthropicProvider implements Provider using the Anthropic SDK.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	apiKey, err := requireEnv("ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicProvider{client: client, model: model}, nil
}

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.check(); err != nil {
		return "", err
	}
	image := base64.StdEncoding.EncodeToString(req.Image)
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(req.Prompt),
				anthropic.NewImageBlockBase64(req.mediaType(), image),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, ""), nil
}
