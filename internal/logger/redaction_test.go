package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedactor(t *testing.T) {
	r := NewRedactor()
	assert.NotNil(t, r)
	assert.NotEmpty(t, r.patterns)
}

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bearer token",
			input:    "Authorization: Bearer demo_token",
			expected: "Authorization: [REDACTED]",
		},
		{
			name:     "auth token field",
			input:    `{"auth_token": "demo_token", "base_url": "http://localhost:8000"}`,
			expected: `{"[REDACTED]", "base_url": "http://localhost:8000"}`,
		},
		{
			name:     "auth token env",
			input:    "EZO_CHAT_AUTH_TOKEN=abc123",
			expected: "EZO_CHAT_[REDACTED]",
		},
		{
			name:     "email",
			input:    `updated email to harun@example.com`,
			expected: `updated email to [REDACTED]`,
		},
		{
			name:     "api key",
			input:    "API key: sk-test123456789abcdefghijklmnopqrstuvwxyz",
			expected: "API key: [REDACTED]",
		},
		{
			name:     "no sensitive data",
			input:    "Session initialized session_key=tab-1 user_id=u1",
			expected: "Session initialized session_key=tab-1 user_id=u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Redact(tt.input))
		})
	}
}

func TestAddPattern(t *testing.T) {
	r := NewRedactor()

	t.Run("valid pattern", func(t *testing.T) {
		err := r.AddPattern(`custom-[0-9]+`)
		assert.NoError(t, err)

		result := r.Redact("Value: custom-12345")
		assert.Contains(t, result, "[REDACTED]")
	})

	t.Run("invalid pattern", func(t *testing.T) {
		err := r.AddPattern(`[invalid`)
		assert.Error(t, err)
	})
}

func TestWrap(t *testing.T) {
	r := NewRedactor()
	buf := &bytes.Buffer{}
	writer := r.Wrap(buf)

	data := []byte("calling backend with Bearer demo_token")
	n, err := writer.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n, "writers report the caller's length")

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, "demo_token")
}
