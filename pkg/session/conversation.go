package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidRole is returned when a message role is neither user nor assistant.
var ErrInvalidRole = errors.New("message role must be user or assistant")

// ConversationTracker keeps the ordered message log and conversation
// metadata of each session.
type ConversationTracker struct {
	m *Manager
}

// ensureConversation returns the record's conversation, creating an empty
// one when the record has none.
func ensureConversation(rec *Record) *ConversationData {
	if rec.Conversation == nil {
		c := emptyConversation()
		rec.Conversation = &c
		return rec.Conversation
	}
	c := rec.Conversation.normalized()
	rec.Conversation = &c
	return rec.Conversation
}

// GetConversationData returns the conversation for key, or empty defaults.
func (t *ConversationTracker) GetConversationData(ctx context.Context, key string) ConversationData {
	rec := t.m.read(ctx, key)
	if rec.Conversation == nil {
		return emptyConversation()
	}
	return rec.Conversation.normalized()
}

// UpdateConversationData overwrites only the fields set in update, stamps
// last_message_time and touches activity.
func (t *ConversationTracker) UpdateConversationData(ctx context.Context, key string, update ConversationUpdate) error {
	return t.m.mutate(ctx, key, "update_conversation", func(rec *Record) error {
		conv := ensureConversation(rec)
		if update.ConversationID != nil {
			conv.ConversationID = *update.ConversationID
		}
		if update.Messages != nil {
			conv.Messages = slices.Clone(*update.Messages)
		}
		if update.CurrentAnxietyLevel != nil {
			conv.CurrentAnxietyLevel = *update.CurrentAnxietyLevel
		}
		if update.AnxietyHistory != nil {
			conv.AnxietyHistory = slices.Clone(*update.AnxietyHistory)
		}
		if update.AgentsInvolved != nil {
			conv.AgentsInvolved = slices.Clone(*update.AgentsInvolved)
		}
		if update.StartTime != nil {
			conv.StartTime = *update.StartTime
		}
		now := t.m.now()
		conv.LastMessageTime = &now
		return nil
	})
}

// AddMessage stamps msg with the current time and the id
// "msg_<position>", appends it and returns the stored message. Ids restart
// at msg_1 after ClearMessages.
func (t *ConversationTracker) AddMessage(ctx context.Context, key string, msg Message) (Message, error) {
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}

	var stored Message
	err := t.m.mutate(ctx, key, "add_message", func(rec *Record) error {
		conv := ensureConversation(rec)
		msg.Timestamp = t.m.now()
		msg.ID = fmt.Sprintf("msg_%d", len(conv.Messages)+1)
		conv.Messages = append(conv.Messages, msg)
		stored = msg
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	return stored, nil
}

// GetMessages returns a copy of the message log, oldest first.
func (t *ConversationTracker) GetMessages(ctx context.Context, key string) []Message {
	return t.GetConversationData(ctx, key).Messages
}

// ClearMessages empties the message log and clears conversation_id and
// start_time. Anxiety state, agents and settings are kept.
func (t *ConversationTracker) ClearMessages(ctx context.Context, key string) error {
	return t.m.mutate(ctx, key, "clear_messages", func(rec *Record) error {
		conv := ensureConversation(rec)
		conv.Messages = []Message{}
		conv.ConversationID = ""
		conv.StartTime = nil
		return nil
	})
}

// RecordAgent appends agent to agents_involved unless it is already listed.
func (t *ConversationTracker) RecordAgent(ctx context.Context, key, agent string) error {
	if agent == "" {
		return nil
	}
	return t.m.mutate(ctx, key, "record_agent", func(rec *Record) error {
		conv := ensureConversation(rec)
		if !slices.Contains(conv.AgentsInvolved, agent) {
			conv.AgentsInvolved = append(conv.AgentsInvolved, agent)
		}
		return nil
	})
}
