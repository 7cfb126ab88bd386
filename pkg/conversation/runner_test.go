package conversation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/harun/ezoverthinking/pkg/chat"
	"github.com/harun/ezoverthinking/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSender is a mock implementation of Sender
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, req chat.SendRequest) (*chat.Reply, error) {
	args := m.Called(ctx, req)
	reply, _ := args.Get(0).(*chat.Reply)
	return reply, args.Error(1)
}

func strPtr(s string) *string { return &s }

func setupRunner(t *testing.T) (*Runner, *session.Manager, *MockSender) {
	t.Helper()
	m := session.NewManager(session.NewMemoryStore(0))
	sender := &MockSender{}
	return NewRunner(m, sender, time.Second), m, sender
}

func TestRunner_Submit(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, chat.SendRequest{Content: "I forgot to reply", UserID: "u1"}).
		Return(&chat.Reply{
			Message:      strPtr("What if they never speak to you again?"),
			AgentName:    "CatastropheEscalator",
			AnxietyLevel: chat.Level{Name: "moderate"},
		}, nil).Once()

	turn, err := r.Submit(ctx, "tab-1", "I forgot to reply")
	require.NoError(t, err)
	sender.AssertExpectations(t)

	assert.Equal(t, "msg_1", turn.User.ID)
	require.NotNil(t, turn.Reply)
	assert.Equal(t, "msg_2", turn.Reply.ID)
	assert.Equal(t, "CatastropheEscalator", turn.Reply.AgentName)
	assert.False(t, turn.Fallback)
	assert.True(t, turn.LevelChanged)
	assert.Equal(t, session.AnxietyModerate, turn.Level)

	conv := m.Conversations().GetConversationData(ctx, "tab-1")
	assert.Equal(t, turn.ConversationID, conv.ConversationID)
	assert.NotEmpty(t, conv.ConversationID)
	assert.NotNil(t, conv.StartTime)
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, []string{"CatastropheEscalator"}, conv.AgentsInvolved)

	history := m.Escalation().GetAnxietyHistory(ctx, "tab-1")
	require.Len(t, history, 1)
	assert.Equal(t, "CatastropheEscalator", history[0].Trigger)
}

func TestRunner_KeepsConversationID(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, mock.Anything).Return(&chat.Reply{Message: strPtr("hm")}, nil)

	first, err := r.Submit(ctx, "tab-1", "one")
	require.NoError(t, err)
	second, err := r.Submit(ctx, "tab-1", "two")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	require.NoError(t, m.Conversations().ClearMessages(ctx, "tab-1"))
	third, err := r.Submit(ctx, "tab-1", "three")
	require.NoError(t, err)
	assert.NotEqual(t, first.ConversationID, third.ConversationID)
	assert.Equal(t, "msg_1", third.User.ID)
}

func TestRunner_MissingMessage(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, mock.Anything).Return(&chat.Reply{}, nil)

	turn, err := r.Submit(ctx, "tab-1", "hello?")
	require.NoError(t, err)
	require.NotNil(t, turn.Reply)
	assert.Equal(t, NoResponse, turn.Reply.Content)
	assert.False(t, turn.LevelChanged)
	assert.Equal(t, session.AnxietyCalm, turn.Level)
	assert.Empty(t, m.Escalation().GetAnxietyHistory(ctx, "tab-1"))
}

func TestRunner_NumericLevel(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	score := 4.0
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&chat.Reply{Message: strPtr("panic"), AgentName: "Doom", AnxietyLevel: chat.Level{Score: &score}}, nil)

	turn, err := r.Submit(ctx, "tab-1", "exam tomorrow")
	require.NoError(t, err)
	assert.Equal(t, session.AnxietyHigh, turn.Level)
	require.NotNil(t, turn.Reply.AnxietyEscalation)
	assert.Equal(t, 4.0, *turn.Reply.AnxietyEscalation)
}

func TestLevelOf(t *testing.T) {
	score := func(v float64) chat.Level { return chat.Level{Score: &v} }

	tests := []struct {
		name     string
		level    chat.Level
		expected session.AnxietyLevel
		ok       bool
	}{
		{"named", chat.Level{Name: "spiraling"}, "spiraling", true},
		{"rounded", score(2.6), session.AnxietyModerate, true},
		{"below range", score(-3), session.AnxietyCalm, true},
		{"above range", score(7), session.AnxietyExtreme, true},
		{"huge", score(1e19), session.AnxietyExtreme, true},
		{"huge negative", score(-1e19), session.AnxietyCalm, true},
		{"infinite", score(math.Inf(1)), session.AnxietyExtreme, true},
		{"not a number", score(math.NaN()), "", false},
		{"absent", chat.Level{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := levelOf(tt.level)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestRunner_StartTimeUsesManagerClock(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	m := session.NewManager(session.NewMemoryStore(0), session.WithClock(func() time.Time { return start }))
	sender := &MockSender{}
	r := NewRunner(m, sender, time.Second)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, mock.Anything).Return(&chat.Reply{Message: strPtr("hm")}, nil)

	_, err := r.Submit(ctx, "tab-1", "hello")
	require.NoError(t, err)

	conv := m.Conversations().GetConversationData(ctx, "tab-1")
	require.NotNil(t, conv.StartTime)
	require.NotNil(t, conv.LastMessageTime)
	assert.Equal(t, start, *conv.StartTime)
	assert.Equal(t, *conv.StartTime, *conv.LastMessageTime)
}

func TestRunner_TransportFailureBecomesSystemTurn(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, mock.Anything).
		Return(nil, &chat.TransportError{URL: "http://localhost:8000/chat/send", Err: errors.New("connection refused")})

	turn, err := r.Submit(ctx, "tab-1", "anyone there?")
	require.NoError(t, err)
	assert.True(t, turn.Fallback)
	require.NotNil(t, turn.Reply)
	assert.Equal(t, SystemAgentName, turn.Reply.AgentName)
	assert.Contains(t, turn.Reply.Content, "connection refused")

	msgs := m.Conversations().GetMessages(ctx, "tab-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.Empty(t, m.Escalation().GetAnxietyHistory(ctx, "tab-1"))
}

func TestRunner_StatusErrorPropagates(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, mock.Anything).Return(nil, &chat.StatusError{Code: 503})

	turn, err := r.Submit(ctx, "tab-1", "hello")
	require.Error(t, err)
	var statusErr *chat.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 503, statusErr.Code)

	require.NotNil(t, turn)
	assert.Nil(t, turn.Reply)
	msgs := m.Conversations().GetMessages(ctx, "tab-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
}

func TestRunner_InitializesMissingSession(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()

	sender.On("Send", mock.Anything, mock.MatchedBy(func(req chat.SendRequest) bool {
		return req.UserID != ""
	})).Return(&chat.Reply{Message: strPtr("hi")}, nil)

	_, err := r.Submit(ctx, "fresh", "hello")
	require.NoError(t, err)
	assert.True(t, m.IsAuthenticated(ctx, "fresh"))
	assert.Len(t, m.Conversations().GetMessages(ctx, "fresh"), 2)
}

func TestRunner_RejectedTransitionKeepsTurn(t *testing.T) {
	m := session.NewManager(session.NewMemoryStore(0), session.WithTransitionValidator(session.MonotonicValidator(1)))
	sender := &MockSender{}
	r := NewRunner(m, sender, 0)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.Anything, mock.Anything).
		Return(&chat.Reply{Message: strPtr("!!!"), AgentName: "Doom", AnxietyLevel: chat.Level{Name: "extreme"}}, nil)

	turn, err := r.Submit(ctx, "tab-1", "hi")
	require.NoError(t, err)
	assert.False(t, turn.LevelChanged)
	assert.Equal(t, session.AnxietyCalm, turn.Level)
	assert.Len(t, m.Conversations().GetMessages(ctx, "tab-1"), 2)
}

func TestRunner_AppliesTimeout(t *testing.T) {
	r, m, sender := setupRunner(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	sender.On("Send", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Second
	}), mock.Anything).Return(&chat.Reply{Message: strPtr("ok")}, nil).Once()

	_, err := r.Submit(ctx, "tab-1", "hi")
	require.NoError(t, err)
	sender.AssertExpectations(t)
}
