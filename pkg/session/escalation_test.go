package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalation_HistoryCap(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))
	esc := m.Escalation()

	for i := 0; i < 60; i++ {
		require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyLevels[i%len(AnxietyLevels)], fmt.Sprintf("t%d", i)))

		history := esc.GetAnxietyHistory(ctx, "tab-1")
		assert.Len(t, history, min(i+1, MaxAnxietyHistory))
	}

	history := esc.GetAnxietyHistory(ctx, "tab-1")
	require.Len(t, history, MaxAnxietyHistory)
	for i, ev := range history {
		assert.Equal(t, fmt.Sprintf("t%d", i+10), ev.Trigger)
	}
	assert.Equal(t, AnxietyExtreme, esc.GetCurrentAnxietyLevel(ctx, "tab-1"))
}

func TestEscalation_UnrestrictedTransitions(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))
	esc := m.Escalation()

	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyExtreme, "spiral"))
	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyCalm, "breathing"))
	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", "frantic", ""))

	assert.Equal(t, AnxietyLevel("frantic"), esc.GetCurrentAnxietyLevel(ctx, "tab-1"))
	assert.Len(t, esc.GetAnxietyHistory(ctx, "tab-1"), 3)
}

func TestEscalation_TransitionValidator(t *testing.T) {
	m, _ := setupTestManager(t, WithTransitionValidator(MonotonicValidator(1)))
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))
	esc := m.Escalation()

	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyMild, "a"))
	assert.Error(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyExtreme, "b"))
	assert.Error(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyCalm, "c"))
	assert.Error(t, esc.UpdateAnxietyLevel(ctx, "tab-1", "frantic", "d"))
	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyModerate, "e"))

	assert.Equal(t, AnxietyModerate, esc.GetCurrentAnxietyLevel(ctx, "tab-1"))
	history := esc.GetAnxietyHistory(ctx, "tab-1")
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].Trigger)
	assert.Equal(t, "e", history[1].Trigger)
}

func TestEscalation_Summary(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))
	esc := m.Escalation()

	sum := esc.Summary(ctx, "tab-1")
	assert.Equal(t, AnxietyCalm, sum.Current)
	assert.Equal(t, AnxietyCalm, sum.Peak)
	assert.Zero(t, sum.Events)

	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyMild, "deadline"))
	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyHigh, "deadline"))
	require.NoError(t, esc.UpdateAnxietyLevel(ctx, "tab-1", AnxietyMild, "nap"))

	sum = esc.Summary(ctx, "tab-1")
	assert.Equal(t, AnxietyMild, sum.Current)
	assert.Equal(t, AnxietyHigh, sum.Peak)
	assert.Equal(t, 3, sum.Events)
	assert.Equal(t, 2, sum.Counts[AnxietyMild])
	assert.Equal(t, "nap", sum.LastTrigger)
}

func TestEscalation_ConcurrentUpdatesKeepCap(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()
	require.True(t, m.InitializeSession(ctx, "tab-1", "u1"))

	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.Escalation().UpdateAnxietyLevel(ctx, "tab-1", AnxietyHigh, fmt.Sprintf("t%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.Escalation().GetAnxietyHistory(ctx, "tab-1"), MaxAnxietyHistory)
}

func TestLevelFromScore(t *testing.T) {
	tests := []struct {
		score int
		want  AnxietyLevel
	}{
		{0, AnxietyCalm},
		{1, AnxietyCalm},
		{2, AnxietyMild},
		{3, AnxietyModerate},
		{4, AnxietyHigh},
		{5, AnxietyExtreme},
		{9, AnxietyExtreme},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromScore(tt.score), "score %d", tt.score)
	}
	assert.Equal(t, -1, AnxietyLevel("frantic").Rank())
}
