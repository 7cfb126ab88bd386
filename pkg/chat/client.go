package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/harun/ezoverthinking/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBaseURL   = "http://localhost:8000"
	DefaultAuthToken = "demo_token"
	DefaultTimeout   = 30 * time.Second
	DefaultUserID    = "demo_user"
)

// SendRequest is one user turn for the backend.
type SendRequest struct {
	Content string
	UserID  string
}

type sendBody struct {
	Content string `json:"content"`
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Level is the backend's anxiety level, which arrives either as a name or
// as a numeric score.
type Level struct {
	Name  string
	Score *float64
}

// IsZero reports whether the backend sent no level.
func (l Level) IsZero() bool {
	return l.Name == "" && l.Score == nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*l = Level{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*l = Level{Name: name}
		return nil
	}
	score, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("anxiety_level must be text or a number: %w", err)
	}
	*l = Level{Score: &score}
	return nil
}

func (l Level) MarshalJSON() ([]byte, error) {
	switch {
	case l.Score != nil:
		return json.Marshal(*l.Score)
	case l.Name != "":
		return json.Marshal(l.Name)
	default:
		return []byte("null"), nil
	}
}

// Reply is the backend's answer to a SendRequest. Message is nil when the
// backend omitted it.
type Reply struct {
	Message      *string `json:"message"`
	AgentName    string  `json:"agent_name,omitempty"`
	AnxietyLevel Level   `json:"anxiety_level"`
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client talks to the agent-selection backend over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Client, filling empty fields with defaults.
func NewClient(cfg Config) *Client {
	observability.EnsureRegistered()

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = DefaultAuthToken
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authToken:  cfg.AuthToken,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Timeout is the bound the client applies to each request.
func (c *Client) Timeout() time.Duration { return c.timeout }

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Send posts one user turn to /chat/send. It never retries.
func (c *Client) Send(ctx context.Context, req SendRequest) (*Reply, error) {
	if req.UserID == "" {
		req.UserID = DefaultUserID
	}

	var reply Reply
	err := c.do(ctx, http.MethodPost, "/chat/send", sendBody{
		Content: req.Content,
		Message: req.Content,
		UserID:  req.UserID,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// Reset asks the backend to drop its conversation state.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/chat/reset", nil, nil)
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (err error) {
	requestID, _ := gonanoid.New()
	ctx = tracing.WithRequestID(ctx, requestID)
	ctx, span := tracing.StartSpan(ctx, "ezoverthinking.chat", "chat.request",
		attribute.String("http.method", method),
		attribute.String("endpoint", endpoint),
		attribute.String("request_id", requestID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	defer func() {
		observability.RecordChatRequest(outcome, time.Since(start))
	}()

	url := c.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			outcome = "error"
			return tracing.Fail(span, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		outcome = "error"
		return tracing.Fail(span, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "transport"
		logger.Error().Str("url", url).Err(err).Msg("Connection error to chat backend")
		return tracing.Fail(span, &TransportError{URL: url, Err: err})
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = "status"
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Error().Int("status", resp.StatusCode).Str("url", url).Msg("Chat backend returned error status")
		return tracing.Fail(span, &StatusError{Code: resp.StatusCode, Body: string(data)})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if ctx.Err() != nil {
			outcome = "transport"
			return tracing.Fail(span, &TransportError{URL: url, Err: err})
		}
		outcome = "error"
		return tracing.Fail(span, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
