package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/harun/ezoverthinking/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxAge is how long a session may sit idle before it counts as expired.
const DefaultMaxAge = 24 * time.Hour

// ErrNoSession is returned by user data updates when the key holds no session.
var ErrNoSession = errors.New("session not initialized")

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns session identity, activity, expiry, reset and backup for
// every session key in its Store. Operations on one key are serialized;
// different keys proceed independently.
type Manager struct {
	store     Store
	now       func() time.Time
	validator TransitionValidator

	maxAgeMu sync.RWMutex
	maxAge   time.Duration

	locksMu sync.Mutex
	locks   map[string]*keyLock

	conversations *ConversationTracker
	escalation    *EscalationTracker
	settings      *SettingsStore
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMaxAge sets the idle limit used by CleanupExpiredSession and by
// IsSessionExpired when it is passed a zero duration.
func WithMaxAge(maxAge time.Duration) Option {
	return func(m *Manager) {
		if maxAge > 0 {
			m.maxAge = maxAge
		}
	}
}

// WithTransitionValidator installs a check run before every anxiety level
// change. Without one every transition is allowed.
func WithTransitionValidator(v TransitionValidator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	observability.EnsureRegistered()

	m := &Manager{
		store:  store,
		now:    time.Now,
		maxAge: DefaultMaxAge,
		locks:  make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.conversations = &ConversationTracker{m: m}
	m.escalation = &EscalationTracker{m: m}
	m.settings = &SettingsStore{m: m}
	return m
}

// Conversations returns the conversation tracker backed by this manager.
func (m *Manager) Conversations() *ConversationTracker { return m.conversations }

// Escalation returns the escalation tracker backed by this manager.
func (m *Manager) Escalation() *EscalationTracker { return m.escalation }

// Settings returns the settings store backed by this manager.
func (m *Manager) Settings() *SettingsStore { return m.settings }

// Now returns the manager's current time, as used for activity stamps.
func (m *Manager) Now() time.Time { return m.now() }

// MaxAge returns the configured idle limit.
func (m *Manager) MaxAge() time.Duration { return m.currentMaxAge() }

// SetMaxAge changes the idle limit at runtime, e.g. after a config reload.
func (m *Manager) SetMaxAge(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	m.maxAgeMu.Lock()
	m.maxAge = maxAge
	m.maxAgeMu.Unlock()
}

func (m *Manager) currentMaxAge() time.Duration {
	m.maxAgeMu.RLock()
	defer m.maxAgeMu.RUnlock()
	return m.maxAge
}

// lock acquires the per-key mutex and returns its release func.
func (m *Manager) lock(key string) func() {
	m.locksMu.Lock()
	l, exists := m.locks[key]
	if !exists {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.locksMu.Unlock()
	}
}

// load reads the record for key; the caller holds the key lock. Absent
// records come back as an empty Record.
func (m *Manager) load(ctx context.Context, key string) (*Record, error) {
	rec, err := m.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{}
	}
	return rec, nil
}

// read returns a snapshot of the record for key. Failures are logged and
// read as an empty record.
func (m *Manager) read(ctx context.Context, key string) *Record {
	if err := ValidateKey(key); err != nil {
		return &Record{}
	}

	unlock := m.lock(key)
	defer unlock()

	rec, err := m.load(ctx, key)
	if err != nil {
		logger := tracing.LoggerFromContext(ctx, log.Logger)
		logger.Warn().
			Str("session_key", key).
			Err(err).
			Msg("Failed to load session, using empty defaults")
		return &Record{}
	}
	return rec
}

// touch stamps last_activity, never earlier than created_at.
func (m *Manager) touch(rec *Record) {
	if rec.Session == nil {
		return
	}
	now := m.now()
	if now.Before(rec.Session.CreatedAt) {
		now = rec.Session.CreatedAt
	}
	rec.Session.LastActivity = now
}

// mutate loads the record for key under its lock, applies fn, stamps
// activity and persists the result. A record that is still empty after fn
// is not written.
func (m *Manager) mutate(ctx context.Context, key, op string, fn func(rec *Record) error) (err error) {
	ctx, span := tracing.StartSpan(ctx, "ezoverthinking.session", "session."+op,
		attribute.String("session_key", key),
	)
	defer span.End()
	defer func() {
		observability.RecordSessionOp(op, err == nil)
	}()

	if err := ValidateKey(key); err != nil {
		return tracing.Fail(span, err)
	}

	unlock := m.lock(key)
	defer unlock()

	rec, err := m.load(ctx, key)
	if err != nil {
		return tracing.Fail(span, err)
	}

	if err := fn(rec); err != nil {
		return tracing.Fail(span, err)
	}
	m.touch(rec)
	if rec.empty() {
		return nil
	}

	if err := m.store.Save(ctx, key, rec); err != nil {
		return tracing.Fail(span, fmt.Errorf("failed to persist session: %w", err))
	}
	return nil
}

func (m *Manager) updateActiveSessionsMetric(ctx context.Context) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(keys))
}

// Initialize creates the session, user data, empty conversation and default
// settings for key in one write, replacing whatever was stored there. An
// empty userID is synthesized from the current time.
func (m *Manager) Initialize(ctx context.Context, key, userID string) Result[Session] {
	ctx = tracing.WithSessionKey(ctx, key)
	ctx, span := tracing.StartSpan(ctx, "ezoverthinking.session", "session.initialize",
		attribute.String("session_key", key),
	)
	defer span.End()

	if err := ValidateKey(key); err != nil {
		observability.RecordSessionOp("initialize", false)
		return fail[Session](tracing.Fail(span, err))
	}

	unlock := m.lock(key)
	defer unlock()

	now := m.now()
	if userID == "" {
		userID = "user_" + now.Format("20060102_150405")
	}

	sess := Session{
		UserID:        userID,
		SessionID:     newSessionID(now),
		CreatedAt:     now,
		LastActivity:  now,
		Authenticated: true,
	}
	conv := emptyConversation()
	conv.CurrentAnxietyLevel = AnxietyCalm

	rec := &Record{
		Session: &sess,
		UserData: &UserData{
			UserID:      userID,
			DisplayName: defaultDisplayName(userID),
			Preferences: map[string]any{},
			CreatedAt:   now,
		},
		Conversation: &conv,
		Settings:     DefaultSettings(),
	}

	if err := m.store.Save(ctx, key, rec); err != nil {
		observability.RecordSessionOp("initialize", false)
		observability.RecordSessionAudit(ctx, "initialize", key, "failure", map[string]interface{}{"error": err.Error()})
		return fail[Session](tracing.Fail(span, fmt.Errorf("failed to initialize session: %w", err)))
	}

	observability.RecordSessionOp("initialize", true)
	observability.RecordSessionAudit(ctx, "initialize", key, "success", map[string]interface{}{"user_id": userID})
	m.updateActiveSessionsMetric(ctx)

	return ok(sess)
}

// InitializeSession is Initialize reduced to a success flag. The failure
// reason is logged.
func (m *Manager) InitializeSession(ctx context.Context, key, userID string) bool {
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	res := m.Initialize(ctx, key, userID)
	if !res.OK() {
		logger.Error().
			Str("session_key", key).
			Str("reason", res.Reason()).
			Msg("Error initializing session")
		return false
	}
	logger.Info().
		Str("session_key", key).
		Str("user_id", res.Value.UserID).
		Msg("Session initialized")
	return true
}

func newSessionID(now time.Time) string {
	return fmt.Sprintf("session_%s_%06d", now.Format("20060102_150405"), now.Nanosecond()/int(time.Microsecond))
}

func defaultDisplayName(userID string) string {
	suffix := userID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "User_" + suffix
}

// GetSession returns the session record for key.
func (m *Manager) GetSession(ctx context.Context, key string) (Session, bool) {
	rec := m.read(ctx, key)
	if rec.Session == nil {
		return Session{}, false
	}
	return *rec.Session, true
}

// GetUserID returns the user ID of the session stored under key.
func (m *Manager) GetUserID(ctx context.Context, key string) (string, bool) {
	sess, exists := m.GetSession(ctx, key)
	if !exists || sess.UserID == "" {
		return "", false
	}
	return sess.UserID, true
}

// IsAuthenticated reports the session's authenticated flag; false when no
// session exists.
func (m *Manager) IsAuthenticated(ctx context.Context, key string) bool {
	sess, _ := m.GetSession(ctx, key)
	return sess.Authenticated
}

// UpdateActivity stamps last_activity with the current time. It is a no-op
// when no session exists under key.
func (m *Manager) UpdateActivity(ctx context.Context, key string) error {
	return m.mutate(ctx, key, "update_activity", func(rec *Record) error {
		return nil
	})
}

// IsSessionExpired reports whether the session has been idle longer than
// maxAge (zero means the manager's configured limit). A missing session or
// missing activity stamp counts as expired.
func (m *Manager) IsSessionExpired(ctx context.Context, key string, maxAge time.Duration) bool {
	return m.expired(m.read(ctx, key), maxAge)
}

func (m *Manager) expired(rec *Record, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = m.currentMaxAge()
	}
	if rec.Session == nil || rec.Session.LastActivity.IsZero() {
		return true
	}
	return m.now().After(rec.Session.LastActivity.Add(maxAge))
}

// CleanupExpiredSession resets the session under key if it has expired and
// reports whether it did.
func (m *Manager) CleanupExpiredSession(ctx context.Context, key string) bool {
	if err := ValidateKey(key); err != nil {
		return false
	}
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	unlock := m.lock(key)
	defer unlock()

	rec, err := m.load(ctx, key)
	if err != nil {
		logger.Warn().Str("session_key", key).Err(err).Msg("Failed to load session for expiry check")
		rec = &Record{}
	}
	if !m.expired(rec, 0) {
		return false
	}

	if err := m.store.Delete(ctx, key); err != nil {
		logger.Error().Str("session_key", key).Err(err).Msg("Failed to delete expired session")
		return false
	}

	observability.RecordExpiredSession()
	observability.RecordSessionAudit(ctx, "expire", key, "success", nil)
	m.updateActiveSessionsMetric(ctx)
	logger.Info().Str("session_key", key).Msg("Expired session cleaned up")
	return true
}

// ResetSession deletes every record stored under key. Resetting an absent
// key is a no-op.
func (m *Manager) ResetSession(ctx context.Context, key string) error {
	ctx, span := tracing.StartSpan(ctx, "ezoverthinking.session", "session.reset",
		attribute.String("session_key", key),
	)
	defer span.End()

	if err := ValidateKey(key); err != nil {
		return tracing.Fail(span, err)
	}

	unlock := m.lock(key)
	defer unlock()

	if err := m.store.Delete(ctx, key); err != nil {
		observability.RecordSessionOp("reset", false)
		return tracing.Fail(span, fmt.Errorf("failed to reset session: %w", err))
	}

	observability.RecordSessionOp("reset", true)
	observability.RecordSessionAudit(ctx, "reset", key, "success", nil)
	m.updateActiveSessionsMetric(ctx)
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	logger.Info().Str("session_key", key).Msg("Session reset completed")
	return nil
}

// GetUserData returns the user data for key, or an empty value.
func (m *Manager) GetUserData(ctx context.Context, key string) UserData {
	rec := m.read(ctx, key)
	if rec.UserData == nil {
		return UserData{Preferences: map[string]any{}}
	}
	u := *rec.UserData
	if u.Preferences == nil {
		u.Preferences = map[string]any{}
	}
	return u
}

// UpdateUserData merges update into the user data for key. Preferences are
// merged key by key.
func (m *Manager) UpdateUserData(ctx context.Context, key string, update UserDataUpdate) error {
	return m.mutate(ctx, key, "update_user_data", func(rec *Record) error {
		if rec.UserData == nil {
			if rec.Session == nil {
				return ErrNoSession
			}
			rec.UserData = &UserData{UserID: rec.Session.UserID, CreatedAt: rec.Session.CreatedAt}
		}
		u := rec.UserData
		if update.DisplayName != nil {
			u.DisplayName = *update.DisplayName
		}
		if update.Email != nil {
			u.Email = *update.Email
		}
		if update.Preferences != nil {
			if u.Preferences == nil {
				u.Preferences = map[string]any{}
			}
			for k, v := range update.Preferences {
				u.Preferences[k] = v
			}
		}
		return nil
	})
}

// Keys lists the session keys currently held by the store.
func (m *Manager) Keys(ctx context.Context) ([]string, error) {
	return m.store.Keys(ctx)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	log.Info().Msg("Session manager closed")
	return m.store.Close()
}
