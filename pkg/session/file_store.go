package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/harun/ezoverthinking/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const fileStoreExt = ".json"

// FileStore keeps one JSON document per session key in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. An empty dir defaults to
// $HOME/.ezoverthinking/sessions.
func NewFileStore(dir string) (*FileStore, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".ezoverthinking", "sessions")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	log.Info().Str("dir", dir).Msg("File session store initialized")
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding session documents.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileStoreExt)
}

func (s *FileStore) Load(ctx context.Context, key string) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "ezoverthinking.session", "store.load",
		attribute.String("session_key", key),
		attribute.String("backend", "file"),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if err := ValidateKey(key); err != nil {
		return nil, tracing.Fail(span, err)
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, tracing.Fail(span, fmt.Errorf("failed to read session file: %w", err))
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Warn().
			Str("session_key", key).
			Err(err).
			Msg("Corrupt session document, treating as absent")
		return nil, nil
	}

	return &rec, nil
}

func (s *FileStore) Save(ctx context.Context, key string, rec *Record) error {
	_, span := tracing.StartSpan(ctx, "ezoverthinking.session", "store.save",
		attribute.String("session_key", key),
		attribute.String("backend", "file"),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	if err := ValidateKey(key); err != nil {
		return tracing.Fail(span, err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return tracing.Fail(span, fmt.Errorf("failed to marshal session: %w", err))
	}

	sessionPath := s.path(key)
	tempPath := sessionPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return tracing.Fail(span, fmt.Errorf("failed to create temp file: %w", err))
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return tracing.Fail(span, fmt.Errorf("failed to write session: %w", err))
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return tracing.Fail(span, fmt.Errorf("failed to sync file: %w", err))
	}

	file.Close()

	if err := os.Rename(tempPath, sessionPath); err != nil {
		os.Remove(tempPath)
		return tracing.Fail(span, fmt.Errorf("failed to replace session file: %w", err))
	}

	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	_, span := tracing.StartSpan(ctx, "ezoverthinking.session", "store.delete",
		attribute.String("session_key", key),
		attribute.String("backend", "file"),
	)
	defer span.End()

	if err := ValidateKey(key); err != nil {
		return tracing.Fail(span, err)
	}

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return tracing.Fail(span, fmt.Errorf("failed to delete session file: %w", err))
	}
	return nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, fileStoreExt) {
			continue
		}

		keys = append(keys, strings.TrimSuffix(name, fileStoreExt))
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error {
	return nil
}
