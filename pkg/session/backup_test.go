package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, m *Manager, key string) {
	t.Helper()
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, key, "u1"))
	_, err := m.Conversations().AddMessage(ctx, key, Message{Role: RoleUser, Content: "what if I fail"})
	require.NoError(t, err)
	_, err = m.Conversations().AddMessage(ctx, key, Message{Role: RoleAssistant, Content: "then what", AgentName: "worry"})
	require.NoError(t, err)
	require.NoError(t, m.Escalation().UpdateAnxietyLevel(ctx, key, AnxietyMild, "worry"))
	require.NoError(t, m.Settings().SetSetting(ctx, key, "theme", "light"))
}

func TestBackup_ExportDoesNotTouch(t *testing.T) {
	m, clock := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")
	before, _ := m.GetSession(ctx, "tab-1")

	clock.Advance(time.Hour)
	snap := m.ExportSessionData(ctx, "tab-1")

	require.NotNil(t, snap.Session)
	assert.Equal(t, before.LastActivity, snap.Session.LastActivity)
	assert.Equal(t, clock.Now(), snap.ExportTimestamp)
	require.NotNil(t, snap.Conversation)
	assert.Len(t, snap.Conversation.Messages, 2)
	assert.Equal(t, "light", snap.Settings["theme"])

	after, _ := m.GetSession(ctx, "tab-1")
	assert.Equal(t, before.LastActivity, after.LastActivity)
}

func TestBackup_ExportJSONShape(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")

	data, err := m.ExportJSON(ctx, "tab-1")
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"session", "user_data", "conversation", "settings", "export_timestamp"} {
		assert.Contains(t, doc, key)
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")

	data, err := m.ExportJSON(ctx, "tab-1")
	require.NoError(t, err)
	require.True(t, m.ImportSessionData(ctx, "tab-2", data))

	src := m.ExportSessionData(ctx, "tab-1")
	dst := m.ExportSessionData(ctx, "tab-2")

	require.NotNil(t, dst.Session)
	assert.Equal(t, src.Session.UserID, dst.Session.UserID)
	assert.Equal(t, src.Session.SessionID, dst.Session.SessionID)
	assert.True(t, src.Session.LastActivity.Equal(dst.Session.LastActivity))
	assert.Equal(t, src.UserData.DisplayName, dst.UserData.DisplayName)

	require.Len(t, dst.Conversation.Messages, 2)
	assert.Equal(t, "msg_2", dst.Conversation.Messages[1].ID)
	assert.Equal(t, "worry", dst.Conversation.Messages[1].AgentName)
	assert.Equal(t, AnxietyMild, dst.Conversation.CurrentAnxietyLevel)
	assert.Len(t, dst.Conversation.AnxietyHistory, 1)
	assert.Equal(t, "light", dst.Settings["theme"])
	assert.Equal(t, true, dst.Settings["notifications"])
}

func TestBackup_RoundTripStructuredSettings(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")
	require.NoError(t, m.Settings().SetSetting(ctx, "tab-1", "favorite_agents", []string{"worry", "spiral"}))
	require.NoError(t, m.Settings().SetSetting(ctx, "tab-1", "quiet_hours", map[string]any{"from": 22, "to": 7}))

	data, err := m.ExportJSON(ctx, "tab-1")
	require.NoError(t, err)

	res := m.Import(ctx, "tab-2", data)
	require.True(t, res.OK(), res.Reason())
	assert.Equal(t, importOrder, res.Value.Applied)

	settings := m.Settings().GetSettings(ctx, "tab-2")
	assert.Equal(t, []any{"worry", "spiral"}, settings["favorite_agents"])
	assert.Equal(t, map[string]any{"from": float64(22), "to": float64(7)}, settings["quiet_hours"])
	assert.Equal(t, "light", settings["theme"])
}

func TestBackup_ImportLeavesAbsentSections(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")

	ok := m.ImportSessionData(ctx, "tab-1", []byte(`{"settings": {"theme": "solarized"}}`))
	require.True(t, ok)

	assert.Equal(t, Settings{"theme": "solarized"}, m.Settings().GetSettings(ctx, "tab-1"), "sections are replaced, not merged")
	assert.Len(t, m.Conversations().GetMessages(ctx, "tab-1"), 2)
	userID, _ := m.GetUserID(ctx, "tab-1")
	assert.Equal(t, "u1", userID)
}

func TestBackup_ImportIsNotAtomic(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")

	doc := []byte(`{
		"session": {
			"user_id": "u9",
			"session_id": "session_restored",
			"created_at": "2026-01-01T00:00:00Z",
			"last_activity": "2026-01-01T00:00:00Z",
			"authenticated": true
		},
		"conversation": {
			"messages": [{"role": "system", "content": "not allowed"}]
		},
		"settings": {"theme": "solarized"}
	}`)

	res := m.Import(ctx, "tab-1", doc)
	require.False(t, res.OK())
	assert.Equal(t, []string{SectionSession}, res.Value.Applied)
	assert.Equal(t, SectionConversation, res.Value.Failed)
	assert.Contains(t, res.Reason(), "conversation")

	userID, _ := m.GetUserID(ctx, "tab-1")
	assert.Equal(t, "u9", userID, "sections before the failure stay applied")
	assert.Len(t, m.Conversations().GetMessages(ctx, "tab-1"), 2)
	assert.Equal(t, "light", m.Settings().GetSettings(ctx, "tab-1")["theme"])
}

func TestBackup_ImportRejects(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{nope`},
		{"not an object", `[1, 2]`},
		{"bad timestamp", `{"session": {"user_id": "u", "session_id": "s", "created_at": "yesterday", "last_activity": "2026-01-01T00:00:00Z"}}`},
		{"session missing fields", `{"session": {"user_id": "u"}}`},
		{"settings not an object", `{"settings": ["dark"]}`},
		{"history too long", `{"conversation": {"anxiety_history": [` + repeatEvents(51) + `]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, m.ImportSessionData(ctx, "tab-1", []byte(tt.doc)))
		})
	}

	assert.False(t, m.ImportSessionData(ctx, "../escape", []byte(`{}`)))
}

func TestBackup_ImportNullClearsSection(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	seedSession(t, m, "tab-1")

	require.True(t, m.ImportSessionData(ctx, "tab-1", []byte(`{"conversation": null}`)))
	assert.Empty(t, m.Conversations().GetMessages(ctx, "tab-1"))

	require.True(t, m.ImportSessionData(ctx, "tab-1", []byte(`{"session": null, "user_data": null, "settings": null}`)))
	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func repeatEvents(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += `{"level": "calm"}`
	}
	return out
}
