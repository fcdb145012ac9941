package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

const historyLimit = 10

var ErrEmptyMessage = errors.New("message is required")

// Turn is one exchange line in a conversation.
type Turn struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

// Service produces short spoken-style career advice through an eino chain.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt → model chain.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile reply chain: %w", err)
	}
	return &Service{chain: runnable}, nil
}

// Reply answers message in lang, taking the most recent history into account.
func (s *Service) Reply(ctx context.Context, lang Language, history []Turn, message string) (string, error) {
	input, err := chainInput(lang, history, message)
	if err != nil {
		return "", err
	}

	out, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run reply chain: %w", err)
	}

	text := strings.TrimSpace(out.Content)
	logrus.WithFields(logrus.Fields{"language": lang, "length": len(text)}).Debug("reply generated")
	return text, nil
}

// Stream is Reply delivered chunk by chunk.
func (s *Service) Stream(ctx context.Context, lang Language, history []Turn, message string) (*schema.StreamReader[*schema.Message], error) {
	input, err := chainInput(lang, history, message)
	if err != nil {
		return nil, err
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("stream reply chain: %w", err)
	}
	return stream, nil
}

func chainInput(lang Language, history []Turn, message string) (map[string]any, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	return map[string]any{
		"system":  lang.SystemPrompt(),
		"history": historyMessages(history),
		"query":   message,
	}, nil
}

func historyMessages(turns []Turn) []*schema.Message {
	if len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}

	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "user":
			msgs = append(msgs, schema.UserMessage(t.Content))
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		}
	}
	return msgs
}
