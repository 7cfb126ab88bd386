package session

import (
	"context"
	"maps"
)

// SettingsStore keeps the per-session user preference options.
type SettingsStore struct {
	m *Manager
}

// GetSettings returns the stored settings, or an empty map when none are
// stored. Defaults are not applied here.
func (s *SettingsStore) GetSettings(ctx context.Context, key string) Settings {
	rec := s.m.read(ctx, key)
	if rec.Settings == nil {
		return Settings{}
	}
	return maps.Clone(rec.Settings)
}

// UpdateSettings merges values into the stored settings.
func (s *SettingsStore) UpdateSettings(ctx context.Context, key string, values Settings) error {
	return s.m.mutate(ctx, key, "update_settings", func(rec *Record) error {
		if rec.Settings == nil {
			rec.Settings = Settings{}
		}
		maps.Copy(rec.Settings, values)
		return nil
	})
}

// GetSetting returns one setting, or def when it is not stored. Like every
// settings call it touches activity.
func (s *SettingsStore) GetSetting(ctx context.Context, key, name string, def any) any {
	value := def
	err := s.m.mutate(ctx, key, "get_setting", func(rec *Record) error {
		if v, exists := rec.Settings[name]; exists {
			value = v
		}
		return nil
	})
	if err != nil {
		return def
	}
	return value
}

// SetSetting stores a single setting.
func (s *SettingsStore) SetSetting(ctx context.Context, key, name string, value any) error {
	return s.UpdateSettings(ctx, key, Settings{name: value})
}
