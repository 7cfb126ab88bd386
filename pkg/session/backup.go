package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/harun/ezoverthinking/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Snapshot is a point-in-time export of every record under one key.
type Snapshot struct {
	Session         *Session          `json:"session"`
	UserData        *UserData         `json:"user_data"`
	Conversation    *ConversationData `json:"conversation"`
	Settings        Settings          `json:"settings"`
	ExportTimestamp time.Time         `json:"export_timestamp"`
}

// Import sections, in the order they are applied.
const (
	SectionSession      = "session"
	SectionUserData     = "user_data"
	SectionConversation = "conversation"
	SectionSettings     = "settings"
)

var importOrder = []string{SectionSession, SectionUserData, SectionConversation, SectionSettings}

// ImportReport lists the sections an import wrote before it finished or failed.
type ImportReport struct {
	Applied []string
	Failed  string
}

// ExportSessionData snapshots the records stored under key. It neither
// mutates the session nor touches its activity.
func (m *Manager) ExportSessionData(ctx context.Context, key string) Snapshot {
	rec := m.read(ctx, key).Clone()
	return Snapshot{
		Session:         rec.Session,
		UserData:        rec.UserData,
		Conversation:    rec.Conversation,
		Settings:        rec.Settings,
		ExportTimestamp: m.now(),
	}
}

// ExportJSON is ExportSessionData encoded as indented JSON.
func (m *Manager) ExportJSON(ctx context.Context, key string) ([]byte, error) {
	return json.MarshalIndent(m.ExportSessionData(ctx, key), "", "  ")
}

// Import overwrites, wholesale, each record whose section is present in
// data, in the order session, user_data, conversation, settings. Sections
// are validated and written one at a time, so a failure leaves the sections
// before it applied; callers needing all-or-nothing should export first
// and import the snapshot back on failure.
func (m *Manager) Import(ctx context.Context, key string, data []byte) Result[ImportReport] {
	ctx = tracing.WithSessionKey(ctx, key)
	report := ImportReport{Applied: []string{}}

	res := m.doImport(ctx, key, data, &report)

	status := "success"
	switch {
	case res.OK():
	case len(report.Applied) > 0:
		status = "partial"
	default:
		status = "failure"
	}
	observability.RecordImport(status)
	observability.RecordSessionAudit(ctx, "import", key, status, map[string]interface{}{
		"applied": report.Applied,
		"failed":  report.Failed,
	})
	if status != "failure" {
		m.updateActiveSessionsMetric(ctx)
	}
	return res
}

func (m *Manager) doImport(ctx context.Context, key string, data []byte, report *ImportReport) Result[ImportReport] {
	if err := ValidateKey(key); err != nil {
		return Result[ImportReport]{Value: *report, Err: err}
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return Result[ImportReport]{Value: *report, Err: fmt.Errorf("invalid import document: %w", err)}
	}
	if sections == nil {
		return Result[ImportReport]{Value: *report, Err: errors.New("import document must be a JSON object")}
	}

	for _, name := range importOrder {
		raw, present := sections[name]
		if !present {
			continue
		}
		if err := m.importSection(ctx, key, name, raw); err != nil {
			report.Failed = name
			return Result[ImportReport]{Value: *report, Err: fmt.Errorf("import %s: %w", name, err)}
		}
		report.Applied = append(report.Applied, name)
	}

	return ok(*report)
}

// importSection validates, decodes and stores one section under the key lock.
func (m *Manager) importSection(ctx context.Context, key, name string, raw json.RawMessage) error {
	if err := validateSection(name, raw); err != nil {
		return err
	}

	apply, err := decodeSection(name, raw)
	if err != nil {
		return err
	}

	unlock := m.lock(key)
	defer unlock()

	rec, err := m.load(ctx, key)
	if err != nil {
		return err
	}
	apply(rec)
	if rec.empty() {
		return m.store.Delete(ctx, key)
	}
	return m.store.Save(ctx, key, rec)
}

func decodeSection(name string, raw json.RawMessage) (func(*Record), error) {
	switch name {
	case SectionSession:
		var v *Session
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return func(rec *Record) { rec.Session = v }, nil
	case SectionUserData:
		var v *UserData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return func(rec *Record) { rec.UserData = v }, nil
	case SectionConversation:
		var v *ConversationData
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if v != nil {
			c := v.normalized()
			v = &c
		}
		return func(rec *Record) { rec.Conversation = v }, nil
	case SectionSettings:
		var v Settings
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return func(rec *Record) { rec.Settings = v }, nil
	}
	return nil, fmt.Errorf("unknown section %q", name)
}

// ImportSessionData is Import reduced to a success flag. The failure
// reason is logged; sections applied before the failure stay applied.
func (m *Manager) ImportSessionData(ctx context.Context, key string, data []byte) bool {
	res := m.Import(ctx, key, data)
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	if !res.OK() {
		logger.Error().
			Str("session_key", key).
			Strs("applied", res.Value.Applied).
			Str("reason", res.Reason()).
			Msg("Error importing session data")
		return false
	}
	logger.Info().
		Str("session_key", key).
		Strs("applied", res.Value.Applied).
		Msg("Session data imported successfully")
	return true
}

func validateSection(name string, raw json.RawMessage) error {
	schema, exists := sectionSchemas[name]
	if !exists {
		return fmt.Errorf("unknown section %q", name)
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
