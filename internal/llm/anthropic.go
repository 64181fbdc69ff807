package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider is the alternate ranking-answer backend. It answers
// from model knowledge without a web search pass, so completions carry no
// source URLs.
type AnthropicProvider struct {
	messages anthropicMessager
	model    anthropic.Model
	timeout  time.Duration
}

type anthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

func NewAnthropicProviderFromEnv() (*AnthropicProvider, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		messages: &c.Messages,
		model:    anthropic.ModelClaudeSonnet4_20250514,
		timeout:  60 * time.Second,
	}, nil
}

func (p *AnthropicProvider) Name() string { return string(p.model) }

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, _ bool) (Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.messages.New(callCtx, anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   1024,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic message: %w", err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return Completion{Text: sb.String()}, nil
}
