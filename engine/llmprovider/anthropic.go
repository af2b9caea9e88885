package llmprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider over the Anthropic Messages API.
// anthropic-sdk-go appears as an indirect dependency of two pack repos
// (MrWong99-glyphoxa, siherrmann-grapher); this is the one component in
// the module that actually needs to issue an LLM chat call, so it is
// promoted to a direct dependency here.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider creates a provider using the given API key and
// model. An empty model defaults to Claude 3.5 Sonnet.
func NewAnthropicProvider(apiKey string, model anthropic.Model) *AnthropicProvider {
	if model == "" {
		model = anthropic.ModelClaude3_5SonnetLatest
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

var _ Provider = (*AnthropicProvider)(nil)

// Chat sends a multi-turn conversation and returns the assistant's reply
// text, concatenating all text blocks of the response.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: int64(maxTokensOrDefault(opts.MaxTokens)),
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llmprovider: anthropic chat: %w", err)
	}
	return joinTextBlocks(msg), nil
}

// Complete issues a single-turn completion with an optional system prompt.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt, system string, opts Options) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: int64(maxTokensOrDefault(opts.MaxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llmprovider: anthropic complete: %w", err)
	}
	return joinTextBlocks(msg), nil
}

func joinTextBlocks(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			b.WriteString(text)
		}
	}
	return b.String()
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 1024
	}
	return n
}
