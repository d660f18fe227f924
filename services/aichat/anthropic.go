package aichatsvc

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
)

const maxTokens = 1024

// AnthropicService answers planner questions through the Anthropic Messages
// API.
type AnthropicService struct {
	client anthropic.Client
	model  anthropic.Model
}

var _ core.ChatCompleter = (*AnthropicService)(nil)

func NewAnthropicService(conf *core.Config) *AnthropicService {
	return &AnthropicService{
		client: anthropic.NewClient(option.WithAPIKey(conf.AnthropicApiKey)),
		model:  anthropic.ModelClaudeSonnet4_0,
	}
}

func (svc *AnthropicService) Complete(ctx context.Context, system string, messages []core.ChatMessage) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     svc.model,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	res, err := svc.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "calling anthropic")
	}

	var out string
	for _, block := range res.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
