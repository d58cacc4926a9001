package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const defaultAssistantName = "the website"

// ArkCompleter answers free text with a chat model instead of a custom
// endpoint. It is selected with RESOLVER_BACKEND=ark.
type ArkCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter compiles a system-prompt + chat-model chain around chatModel.
func NewArkCompleter(ctx context.Context, chatModel model.BaseChatModel) (*ArkCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	return &ArkCompleter{chain: runnable}, nil
}

// Complete implements Completer.
func (c *ArkCompleter) Complete(ctx context.Context, req Request) (string, error) {
	response, err := c.chain.Invoke(ctx, map[string]any{
		"system": buildSystemPrompt(req.WidgetName),
		"query":  req.UserInput,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run reply chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyReply
	}

	log.Debug().Str("client", req.ClientID.String()).Int("length", len(response.Content)).Msg("model reply generated")
	return response.Content, nil
}

func buildSystemPrompt(widgetName string) string {
	name := strings.TrimSpace(widgetName)
	if name == "" {
		name = defaultAssistantName
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("You are the chat assistant embedded on %s.", name))
	builder.WriteString("\nAnswer visitor questions briefly and politely in the visitor's language.")
	builder.WriteString("\nIf you do not know the answer, say so and suggest contacting the site owner.")
	return builder.String()
}
