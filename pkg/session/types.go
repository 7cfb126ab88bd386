package session

import (
	"maps"
	"slices"
	"time"
)

// MaxAnxietyHistory is the capacity of the anxiety history window.
const MaxAnxietyHistory = 50

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AnxietyLevel is a named severity tag for escalation state.
type AnxietyLevel string

const (
	AnxietyCalm     AnxietyLevel = "calm"
	AnxietyMild     AnxietyLevel = "mild"
	AnxietyModerate AnxietyLevel = "moderate"
	AnxietyHigh     AnxietyLevel = "high"
	AnxietyExtreme  AnxietyLevel = "extreme"
)

// AnxietyLevels lists the known levels from lowest to highest.
var AnxietyLevels = []AnxietyLevel{
	AnxietyCalm,
	AnxietyMild,
	AnxietyModerate,
	AnxietyHigh,
	AnxietyExtreme,
}

// Rank returns the position of the level in AnxietyLevels, or -1 for
// levels outside the known set.
func (l AnxietyLevel) Rank() int {
	return slices.Index(AnxietyLevels, l)
}

// LevelFromScore maps a backend score in 1..5 onto the named levels.
// Scores outside that range clamp to the nearest end.
func LevelFromScore(score int) AnxietyLevel {
	switch {
	case score <= 1:
		return AnxietyCalm
	case score >= len(AnxietyLevels):
		return AnxietyExtreme
	default:
		return AnxietyLevels[score-1]
	}
}

// Session is the identity and activity record of one user interaction lifetime.
type Session struct {
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	Authenticated bool      `json:"authenticated"`
}

// UserData holds profile information for the session's user.
type UserData struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Email       *string        `json:"email"`
	Preferences map[string]any `json:"preferences"`
	CreatedAt   time.Time      `json:"created_at"`
}

// UserDataUpdate carries the fields to overwrite on UserData. Nil fields are
// left untouched.
type UserDataUpdate struct {
	DisplayName *string
	Email       **string
	Preferences map[string]any
}

// Message is a single conversation turn.
type Message struct {
	ID                string    `json:"id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	AgentName         string    `json:"agent_name,omitempty"`
	AnxietyEscalation *float64  `json:"anxiety_escalation,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// AnxietyEvent records one anxiety level change.
type AnxietyEvent struct {
	Level     AnxietyLevel `json:"level"`
	Timestamp time.Time    `json:"timestamp"`
	Trigger   string       `json:"trigger,omitempty"`
}

// ConversationData is the turn history and metadata of the current conversation.
type ConversationData struct {
	ConversationID      string         `json:"conversation_id,omitempty"`
	Messages            []Message      `json:"messages"`
	CurrentAnxietyLevel AnxietyLevel   `json:"current_anxiety_level,omitempty"`
	AnxietyHistory      []AnxietyEvent `json:"anxiety_history"`
	AgentsInvolved      []string       `json:"agents_involved"`
	StartTime           *time.Time     `json:"start_time,omitempty"`
	LastMessageTime     *time.Time     `json:"last_message_time,omitempty"`
}

// ConversationUpdate is a shallow merge onto ConversationData. Only non-nil
// fields are written.
type ConversationUpdate struct {
	ConversationID      *string
	Messages            *[]Message
	CurrentAnxietyLevel *AnxietyLevel
	AnxietyHistory      *[]AnxietyEvent
	AgentsInvolved      *[]string
	StartTime           **time.Time
}

// Settings is a flat mapping of user preference options.
type Settings map[string]any

// DefaultSettings returns the settings written at session initialization.
func DefaultSettings() Settings {
	return Settings{
		"theme":          "dark",
		"notifications":  true,
		"sound_effects":  true,
		"auto_continue":  false,
		"anxiety_alerts": true,
		"privacy_mode":   false,
	}
}

// Record is the composite value stored under one session key. A nil
// sub-record means that part has never been written.
type Record struct {
	Session      *Session          `json:"session,omitempty"`
	UserData     *UserData         `json:"user_data,omitempty"`
	Conversation *ConversationData `json:"conversation,omitempty"`
	Settings     Settings          `json:"settings,omitempty"`
}

func (r *Record) empty() bool {
	return r.Session == nil && r.UserData == nil && r.Conversation == nil && r.Settings == nil
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{}
	if r.Session != nil {
		s := *r.Session
		out.Session = &s
	}
	if r.UserData != nil {
		u := r.UserData.clone()
		out.UserData = &u
	}
	if r.Conversation != nil {
		c := r.Conversation.clone()
		out.Conversation = &c
	}
	if r.Settings != nil {
		out.Settings = maps.Clone(r.Settings)
	}
	return out
}

func (u UserData) clone() UserData {
	if u.Email != nil {
		e := *u.Email
		u.Email = &e
	}
	u.Preferences = maps.Clone(u.Preferences)
	return u
}

func (c ConversationData) clone() ConversationData {
	c.Messages = slices.Clone(c.Messages)
	c.AnxietyHistory = slices.Clone(c.AnxietyHistory)
	c.AgentsInvolved = slices.Clone(c.AgentsInvolved)
	if c.StartTime != nil {
		t := *c.StartTime
		c.StartTime = &t
	}
	if c.LastMessageTime != nil {
		t := *c.LastMessageTime
		c.LastMessageTime = &t
	}
	return c
}

// emptyConversation is what readers see when no conversation is stored.
func emptyConversation() ConversationData {
	return ConversationData{
		Messages:       []Message{},
		AnxietyHistory: []AnxietyEvent{},
		AgentsInvolved: []string{},
	}
}

// normalized fills nil slices so callers can range and append freely.
func (c ConversationData) normalized() ConversationData {
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	if c.AnxietyHistory == nil {
		c.AnxietyHistory = []AnxietyEvent{}
	}
	if c.AgentsInvolved == nil {
		c.AgentsInvolved = []string{}
	}
	return c
}
