package session

import (
	"context"
	"fmt"
	"strings"
)

// Store persists one composite Record per session key.
//
// Load returns (nil, nil) when the key is absent, expired, or its stored
// document cannot be decoded. Delete of an absent key is not an error.
// Implementations need not serialize access per key; Manager does that.
type Store interface {
	Load(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, rec *Record) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// ValidateKey rejects session keys that are empty or unsafe to use as a
// file name.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("session key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("session key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("session key cannot contain null bytes")
	}
	return nil
}
