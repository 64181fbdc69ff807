package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type fakeMessager struct {
	gotPrompt string
	resp      *anthropic.Message
	err       error
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	if len(params.Messages) > 0 && len(params.Messages[0].Content) > 0 {
		f.gotPrompt = params.Messages[0].Content[0].OfText.Text
	}
	return f.resp, f.err
}

func TestAnthropicComplete(t *testing.T) {
	fake := &fakeMessager{
		resp: &anthropic.Message{
			Content: []anthropic.ContentBlockUnion{
				{Type: "text", Text: "ranking[5]: "},
				{Type: "text", Text: "Nike A,Adidas B,Asics C,Brooks D,Hoka E"},
			},
		},
	}
	p := &AnthropicProvider{messages: fake, model: "claude-test", timeout: time.Second}

	got, err := p.Complete(context.Background(), "rank the shoes", true)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != "ranking[5]: Nike A,Adidas B,Asics C,Brooks D,Hoka E" {
		t.Fatalf("text = %q", got.Text)
	}
	if len(got.Sources) != 0 {
		t.Fatalf("sources = %v, anthropic answers carry none", got.Sources)
	}
	if fake.gotPrompt != "rank the shoes" {
		t.Fatalf("prompt sent = %q", fake.gotPrompt)
	}
	if p.Name() != "claude-test" {
		t.Fatalf("name = %q", p.Name())
	}
}

func TestAnthropicCompleteError(t *testing.T) {
	fake := &fakeMessager{err: fmt.Errorf("rate limited")}
	p := &AnthropicProvider{messages: fake, model: "claude-test", timeout: time.Second}

	_, err := p.Complete(context.Background(), "prompt", false)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewAnthropicProviderFromEnvRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", " ")
	if _, err := NewAnthropicProviderFromEnv(); err == nil {
		t.Fatal("expected error with no api key")
	}
}
