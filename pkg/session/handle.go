package session

import (
	"context"
	"time"
)

// Handle binds a Manager to one session key.
type Handle struct {
	m   *Manager
	key string
}

// Session returns a Handle for key.
func (m *Manager) Session(key string) *Handle {
	return &Handle{m: m, key: key}
}

// Key returns the session key the handle is bound to.
func (h *Handle) Key() string { return h.key }

// Initialize starts a fresh session, see Manager.InitializeSession.
func (h *Handle) Initialize(ctx context.Context, userID string) bool {
	return h.m.InitializeSession(ctx, h.key, userID)
}

// UserID returns the session's user id and whether a session exists.
func (h *Handle) UserID(ctx context.Context) (string, bool) {
	return h.m.GetUserID(ctx, h.key)
}

// IsAuthenticated reports whether the session is authenticated.
func (h *Handle) IsAuthenticated(ctx context.Context) bool {
	return h.m.IsAuthenticated(ctx, h.key)
}

// UpdateActivity stamps last_activity with the manager's clock.
func (h *Handle) UpdateActivity(ctx context.Context) error {
	return h.m.UpdateActivity(ctx, h.key)
}

// IsExpired reports whether the session has been idle longer than maxAge.
// A non-positive maxAge uses the manager's limit.
func (h *Handle) IsExpired(ctx context.Context, maxAge time.Duration) bool {
	return h.m.IsSessionExpired(ctx, h.key, maxAge)
}

// CleanupExpired resets the session if it has expired and reports whether it did.
func (h *Handle) CleanupExpired(ctx context.Context) bool {
	return h.m.CleanupExpiredSession(ctx, h.key)
}

// Reset drops every record stored under the key.
func (h *Handle) Reset(ctx context.Context) error {
	return h.m.ResetSession(ctx, h.key)
}

// UserData returns the user profile, or an empty one when absent.
func (h *Handle) UserData(ctx context.Context) UserData {
	return h.m.GetUserData(ctx, h.key)
}

// UpdateUserData overwrites the fields set in update.
func (h *Handle) UpdateUserData(ctx context.Context, update UserDataUpdate) error {
	return h.m.UpdateUserData(ctx, h.key, update)
}

// Conversation returns the conversation record with empty slices when absent.
func (h *Handle) Conversation(ctx context.Context) ConversationData {
	return h.m.conversations.GetConversationData(ctx, h.key)
}

// UpdateConversation merges update into the conversation record.
func (h *Handle) UpdateConversation(ctx context.Context, update ConversationUpdate) error {
	return h.m.conversations.UpdateConversationData(ctx, h.key, update)
}

// AddMessage appends msg and returns it with id and timestamp filled in.
func (h *Handle) AddMessage(ctx context.Context, msg Message) (Message, error) {
	return h.m.conversations.AddMessage(ctx, h.key, msg)
}

// Messages returns a copy of the conversation's messages.
func (h *Handle) Messages(ctx context.Context) []Message {
	return h.m.conversations.GetMessages(ctx, h.key)
}

// ClearMessages empties the messages and forgets the conversation id and
// start time. Message ids restart at msg_1.
func (h *Handle) ClearMessages(ctx context.Context) error {
	return h.m.conversations.ClearMessages(ctx, h.key)
}

// UpdateAnxietyLevel sets the current level and appends it to the history.
func (h *Handle) UpdateAnxietyLevel(ctx context.Context, level AnxietyLevel, trigger string) error {
	return h.m.escalation.UpdateAnxietyLevel(ctx, h.key, level, trigger)
}

// AnxietyLevel returns the current level, calm when none is stored.
func (h *Handle) AnxietyLevel(ctx context.Context) AnxietyLevel {
	return h.m.escalation.GetCurrentAnxietyLevel(ctx, h.key)
}

// AnxietyHistory returns the level changes, oldest first.
func (h *Handle) AnxietyHistory(ctx context.Context) []AnxietyEvent {
	return h.m.escalation.GetAnxietyHistory(ctx, h.key)
}

// Settings returns a copy of the stored settings.
func (h *Handle) Settings(ctx context.Context) Settings {
	return h.m.settings.GetSettings(ctx, h.key)
}

// UpdateSettings merges values into the stored settings.
func (h *Handle) UpdateSettings(ctx context.Context, values Settings) error {
	return h.m.settings.UpdateSettings(ctx, h.key, values)
}

// Setting returns one setting, or def when it is not stored.
func (h *Handle) Setting(ctx context.Context, name string, def any) any {
	return h.m.settings.GetSetting(ctx, h.key, name, def)
}

// SetSetting stores a single setting.
func (h *Handle) SetSetting(ctx context.Context, name string, value any) error {
	return h.m.settings.SetSetting(ctx, h.key, name, value)
}

// Export snapshots the session without touching its activity.
func (h *Handle) Export(ctx context.Context) Snapshot {
	return h.m.ExportSessionData(ctx, h.key)
}

// Import restores the sections present in data, see Manager.Import.
func (h *Handle) Import(ctx context.Context, data []byte) bool {
	return h.m.ImportSessionData(ctx, h.key, data)
}
