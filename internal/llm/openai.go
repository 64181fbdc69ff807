package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-4o-mini-search-preview"

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for OpenAI-compatible gateways
	Timeout time.Duration
}

// OpenAIProvider implements Provider with the OpenAI chat completions API.
// Source URLs come from url_citation annotations on the answer message.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Logical validation retries live in the executor; the SDK should
		// not add its own layer underneath them.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// NewOpenAIProviderFromEnv builds a provider from OPENAI_API_KEY.
func NewOpenAIProviderFromEnv(model string) (*OpenAIProvider, error) {
	return NewOpenAIProvider(OpenAIConfig{
		APIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Model:  model,
	})
}

func (p *OpenAIProvider) Name() string { return p.model }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, webSearch bool) (Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: p.model,
	}
	if webSearch {
		params.WebSearchOptions = openai.ChatCompletionNewParamsWebSearchOptions{
			SearchContextSize: "low",
		}
	}

	completion, err := p.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Completion{}, errors.New("openai completion returned no choices")
	}

	msg := completion.Choices[0].Message
	var sources []string
	for _, ann := range msg.Annotations {
		if ann.Type == "url_citation" && ann.URLCitation.URL != "" {
			sources = append(sources, ann.URLCitation.URL)
		}
	}
	return Completion{Text: msg.Content, Sources: sources}, nil
}
