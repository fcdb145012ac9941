package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/mock-interview/backend/internal/service/reply"
)

// MaxTurns bounds the stored history; older turns are dropped in pairs.
const MaxTurns = 40

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrReplyUnavailable     = errors.New("reply service is not configured")
)

// Replier generates the assistant's next line.
type Replier interface {
	Reply(ctx context.Context, lang reply.Language, history []reply.Turn, message string) (string, error)
}

// Conversation is one career-guide chat.
type Conversation struct {
	ID        string         `json:"id"`
	Language  reply.Language `json:"language"`
	Turns     []reply.Turn   `json:"turns"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Service keeps conversations in memory and routes messages to the replier.
type Service struct {
	replier Replier

	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewService accepts a nil replier; Respond then fails with ErrReplyUnavailable.
func NewService(replier Replier) *Service {
	return &Service{
		replier:       replier,
		conversations: make(map[string]*Conversation),
	}
}

func (s *Service) Available() bool {
	return s.replier != nil
}

// Create starts an empty conversation in lang.
func (s *Service) Create(_ context.Context, lang reply.Language) Conversation {
	c := &Conversation{
		ID:        uuid.NewString(),
		Language:  lang,
		Turns:     make([]reply.Turn, 0, 16),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.conversations[c.ID] = c
	s.mu.Unlock()
	return copyConversation(c)
}

// Get returns a copy of the conversation.
func (s *Service) Get(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return copyConversation(c), nil
}

// SetLanguage switches the reply language for later messages.
func (s *Service) SetLanguage(_ context.Context, id string, lang reply.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	c.Language = lang
	return nil
}

// Respond records message, asks the replier, and records the answer.
func (s *Service) Respond(ctx context.Context, id, message string) (string, error) {
	if s.replier == nil {
		return "", ErrReplyUnavailable
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", reply.ErrEmptyMessage
	}

	conv, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	answer, err := s.replier.Reply(ctx, conv.Language, conv.Turns, message)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		c.Turns = append(c.Turns, reply.Turn{Role: "user", Content: message}, reply.Turn{Role: "assistant", Content: answer})
		if over := len(c.Turns) - MaxTurns; over > 0 {
			c.Turns = append(c.Turns[:0:0], c.Turns[over:]...)
		}
	}
	return answer, nil
}

// Delete forgets a conversation.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	return nil
}

func copyConversation(c *Conversation) Conversation {
	out := *c
	out.Turns = append([]reply.Turn(nil), c.Turns...)
	return out
}
