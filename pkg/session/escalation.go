package session

import (
	"context"
	"fmt"

	"github.com/harun/ezoverthinking/internal/observability"
)

// TransitionValidator decides whether the anxiety level may move from one
// value to another. Returning an error rejects the update.
type TransitionValidator func(from, to AnxietyLevel) error

// EscalationTracker keeps the current anxiety level and a sliding window of
// the last MaxAnxietyHistory level changes.
type EscalationTracker struct {
	m *Manager
}

// UpdateAnxietyLevel sets the current level and appends an event to the
// history, evicting the oldest events beyond MaxAnxietyHistory. Any level
// is accepted and any transition is allowed unless a TransitionValidator is
// installed.
func (t *EscalationTracker) UpdateAnxietyLevel(ctx context.Context, key string, level AnxietyLevel, trigger string) error {
	err := t.m.mutate(ctx, key, "update_anxiety_level", func(rec *Record) error {
		conv := ensureConversation(rec)

		if t.m.validator != nil {
			from := conv.CurrentAnxietyLevel
			if from == "" {
				from = AnxietyCalm
			}
			if err := t.m.validator(from, level); err != nil {
				return fmt.Errorf("anxiety transition %s -> %s rejected: %w", from, level, err)
			}
		}

		conv.CurrentAnxietyLevel = level
		conv.AnxietyHistory = append(conv.AnxietyHistory, AnxietyEvent{
			Level:     level,
			Timestamp: t.m.now(),
			Trigger:   trigger,
		})
		if n := len(conv.AnxietyHistory); n > MaxAnxietyHistory {
			window := make([]AnxietyEvent, MaxAnxietyHistory)
			copy(window, conv.AnxietyHistory[n-MaxAnxietyHistory:])
			conv.AnxietyHistory = window
		}
		return nil
	})
	if err == nil {
		observability.RecordAnxietyUpdate(string(level))
	}
	return err
}

// GetCurrentAnxietyLevel returns the current level, calm when unset.
func (t *EscalationTracker) GetCurrentAnxietyLevel(ctx context.Context, key string) AnxietyLevel {
	rec := t.m.read(ctx, key)
	if rec.Conversation == nil || rec.Conversation.CurrentAnxietyLevel == "" {
		return AnxietyCalm
	}
	return rec.Conversation.CurrentAnxietyLevel
}

// GetAnxietyHistory returns the recorded level changes, oldest first.
func (t *EscalationTracker) GetAnxietyHistory(ctx context.Context, key string) []AnxietyEvent {
	rec := t.m.read(ctx, key)
	if rec.Conversation == nil || rec.Conversation.AnxietyHistory == nil {
		return []AnxietyEvent{}
	}
	return rec.Conversation.AnxietyHistory
}

// EscalationSummary aggregates the anxiety history window.
type EscalationSummary struct {
	Current     AnxietyLevel         `json:"current"`
	Peak        AnxietyLevel         `json:"peak"`
	Events      int                  `json:"events"`
	Counts      map[AnxietyLevel]int `json:"counts"`
	LastTrigger string               `json:"last_trigger,omitempty"`
}

// Summary aggregates the history window for key. Peak only considers known
// levels and falls back to the current level.
func (t *EscalationTracker) Summary(ctx context.Context, key string) EscalationSummary {
	rec := t.m.read(ctx, key)
	sum := EscalationSummary{
		Current: AnxietyCalm,
		Counts:  map[AnxietyLevel]int{},
	}
	if rec.Conversation == nil {
		sum.Peak = sum.Current
		return sum
	}
	if rec.Conversation.CurrentAnxietyLevel != "" {
		sum.Current = rec.Conversation.CurrentAnxietyLevel
	}

	peakRank := -1
	for _, ev := range rec.Conversation.AnxietyHistory {
		sum.Counts[ev.Level]++
		if r := ev.Level.Rank(); r > peakRank {
			peakRank = r
			sum.Peak = ev.Level
		}
		if ev.Trigger != "" {
			sum.LastTrigger = ev.Trigger
		}
	}
	sum.Events = len(rec.Conversation.AnxietyHistory)
	if sum.Peak == "" {
		sum.Peak = sum.Current
	}
	return sum
}

// MonotonicValidator is a TransitionValidator that only allows the level to
// stay the same or rise by at most maxStep known levels. Unknown levels are
// rejected.
func MonotonicValidator(maxStep int) TransitionValidator {
	return func(from, to AnxietyLevel) error {
		fr, tr := from.Rank(), to.Rank()
		if tr < 0 {
			return fmt.Errorf("unknown anxiety level %q", to)
		}
		if fr < 0 {
			return nil
		}
		if tr < fr {
			return fmt.Errorf("de-escalation not allowed")
		}
		if maxStep > 0 && tr-fr > maxStep {
			return fmt.Errorf("step of %d exceeds %d", tr-fr, maxStep)
		}
		return nil
	}
}
