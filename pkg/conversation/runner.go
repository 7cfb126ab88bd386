// Package conversation runs one user turn against the chat backend and
// records both sides of it in the session.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/harun/ezoverthinking/internal/tracing"
	"github.com/harun/ezoverthinking/pkg/chat"
	"github.com/harun/ezoverthinking/pkg/session"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	NoResponse      = "(No response)"
	SystemAgentName = "System"
)

// Sender is the part of chat.Client the runner needs.
type Sender interface {
	Send(ctx context.Context, req chat.SendRequest) (*chat.Reply, error)
}

// Turn is the outcome of one Submit.
type Turn struct {
	ConversationID string
	User           session.Message
	Reply          *session.Message
	Level          session.AnxietyLevel
	LevelChanged   bool
	Fallback       bool
}

// Runner drives the conversation update flow for a session Manager.
type Runner struct {
	manager *session.Manager
	sender  Sender
	timeout time.Duration
}

// NewRunner creates a Runner. A non-positive timeout uses chat.DefaultTimeout.
func NewRunner(manager *session.Manager, sender Sender, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = chat.DefaultTimeout
	}
	return &Runner{manager: manager, sender: sender, timeout: timeout}
}

// Submit records text as a user message, initializing the session first
// when key holds none, then asks the backend for a reply and records it.
// A backend that cannot be reached yields a System reply instead of an
// error. A non-2xx answer is returned as *chat.StatusError after the user
// message has been recorded. Nothing is retried.
func (r *Runner) Submit(ctx context.Context, key, text string) (*Turn, error) {
	ctx = tracing.NewTurnContext(ctx, key)
	ctx, span := tracing.StartSpan(ctx, "ezoverthinking.conversation", "conversation.submit",
		attribute.String("session_key", key),
	)
	defer span.End()

	s := r.manager.Session(key)
	userID, exists := s.UserID(ctx)
	if !exists {
		if !s.Initialize(ctx, "") {
			return nil, tracing.Fail(span, fmt.Errorf("failed to initialize session %q", key))
		}
		userID, _ = s.UserID(ctx)
	}
	ctx = tracing.WithUserID(ctx, userID)
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	convID, err := r.ensureConversation(ctx, s)
	if err != nil {
		return nil, tracing.Fail(span, err)
	}

	userMsg, err := s.AddMessage(ctx, session.Message{Role: session.RoleUser, Content: text})
	if err != nil {
		return nil, tracing.Fail(span, fmt.Errorf("failed to record user message: %w", err))
	}
	turn := &Turn{ConversationID: convID, User: userMsg}

	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	reply, err := r.sender.Send(sendCtx, chat.SendRequest{Content: text, UserID: userID})
	cancel()

	if err != nil {
		if !errors.Is(err, chat.ErrTransport) {
			logger.Error().Err(err).Msg("Chat backend rejected the turn")
			return turn, tracing.Fail(span, err)
		}
		logger.Warn().Err(err).Msg("Chat backend unreachable, recording system reply")
		zero := 0.0
		sys, addErr := s.AddMessage(ctx, session.Message{
			Role:              session.RoleAssistant,
			Content:           fmt.Sprintf("Sorry, I'm having trouble connecting to my overthinking services. Error: %v", err),
			AgentName:         SystemAgentName,
			AnxietyEscalation: &zero,
		})
		if addErr != nil {
			return turn, tracing.Fail(span, fmt.Errorf("failed to record system reply: %w", addErr))
		}
		turn.Reply = &sys
		turn.Fallback = true
		turn.Level = s.AnxietyLevel(ctx)
		return turn, nil
	}

	content := NoResponse
	if reply.Message != nil {
		content = *reply.Message
	}

	level, hasLevel := levelOf(reply.AnxietyLevel)
	assistant, err := s.AddMessage(ctx, session.Message{
		Role:              session.RoleAssistant,
		Content:           content,
		AgentName:         reply.AgentName,
		AnxietyEscalation: reply.AnxietyLevel.Score,
	})
	if err != nil {
		return turn, tracing.Fail(span, fmt.Errorf("failed to record reply: %w", err))
	}
	turn.Reply = &assistant

	if err := r.manager.Conversations().RecordAgent(ctx, key, reply.AgentName); err != nil {
		return turn, tracing.Fail(span, err)
	}

	if hasLevel {
		if err := s.UpdateAnxietyLevel(ctx, level, reply.AgentName); err != nil {
			logger.Warn().Err(err).Str("level", string(level)).Msg("Anxiety level update rejected")
		} else {
			turn.LevelChanged = true
		}
	}
	turn.Level = s.AnxietyLevel(ctx)

	logger.Debug().
		Str("agent", reply.AgentName).
		Str("anxiety_level", string(turn.Level)).
		Msg("Conversation turn recorded")
	return turn, nil
}

// ensureConversation assigns a conversation id and start time on the first
// turn after initialization or a clear.
func (r *Runner) ensureConversation(ctx context.Context, s *session.Handle) (string, error) {
	conv := s.Conversation(ctx)
	if conv.ConversationID != "" {
		return conv.ConversationID, nil
	}

	id := uuid.New().String()
	now := r.manager.Now()
	start := &now
	if err := s.UpdateConversation(ctx, session.ConversationUpdate{
		ConversationID: &id,
		StartTime:      &start,
	}); err != nil {
		return "", fmt.Errorf("failed to start conversation: %w", err)
	}
	return id, nil
}

// levelOf maps the backend level onto a named level. Named levels pass
// through as sent; numeric scores are clamped to 1..5 and rounded onto
// calm..extreme.
func levelOf(l chat.Level) (session.AnxietyLevel, bool) {
	switch {
	case l.Name != "":
		return session.AnxietyLevel(l.Name), true
	case l.Score != nil:
		if math.IsNaN(*l.Score) {
			return "", false
		}
		score := math.Min(math.Max(*l.Score, 1), float64(len(session.AnxietyLevels)))
		return session.LevelFromScore(int(math.Round(score))), true
	default:
		return "", false
	}
}
