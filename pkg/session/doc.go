// Package session tracks per-user session state: identity and activity,
// the conversation log, a bounded anxiety escalation history and user
// settings, all stored as one Record per session key.
//
// Invariants:
// - Session keys are validated and path-safe.
// - Operations on one key are serialized; different keys run in parallel.
// - Every mutation stamps last_activity, never earlier than created_at.
// - The anxiety history holds at most MaxAnxietyHistory events, oldest evicted first.
// - Reads of absent or partial records return empty defaults, never errors.
//
// Usage:
//
//	mgr := session.NewManager(session.NewMemoryStore(0))
//	s := mgr.Session("tab-1")
//	_ = s.Initialize(ctx, "")
//	_, _ = s.AddMessage(ctx, session.Message{Role: session.RoleUser, Content: "hello"})
//	_ = s.UpdateAnxietyLevel(ctx, session.AnxietyMild, "worry_agent")
package session
