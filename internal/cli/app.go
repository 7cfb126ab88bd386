package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/ezoverthinking/internal/config"
	"github.com/harun/ezoverthinking/internal/logger"
	"github.com/harun/ezoverthinking/internal/observability"
	"github.com/harun/ezoverthinking/internal/tracing"
	"github.com/harun/ezoverthinking/pkg/chat"
	"github.com/harun/ezoverthinking/pkg/conversation"
	"github.com/harun/ezoverthinking/pkg/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app is everything a command needs, wired from the loaded config.
type app struct {
	cfg     *config.Config
	loader  *config.Loader
	logger  *logger.Logger
	tracer  *tracing.Provider
	manager *session.Manager
	client  *chat.Client
	runner  *conversation.Runner
}

// newApp loads the config and wires logging, tracing, auditing, the session
// store and the chat client. Callers must Close the returned app.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	loader := config.NewLoader(opts.cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		cfg.Logging.Level = opts.logLevel
	}
	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	lg, err := logger.New(logger.Config{
		Level:          cfg.Logging.Level,
		File:           cfg.Logging.File,
		Console:        cfg.Logging.Console,
		Pretty:         cfg.Logging.Pretty,
		Redaction:      cfg.Logging.Redaction,
		RedactPatterns: cfg.Logging.RedactPatterns,
		MaxSize:        cfg.Logging.MaxSize,
		MaxAge:         cfg.Logging.MaxAge,
		Compress:       cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var tracer *tracing.Provider
	if cfg.Tracing.Enabled {
		tracer, err = tracing.NewProvider(cmd.Context(), tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Tracing disabled")
		}
	}

	if cfg.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.AuditFile); err != nil {
			lg.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	store, err := openStore(cfg.Session)
	if err != nil {
		lg.Close()
		return nil, err
	}

	manager := session.NewManager(store, session.WithMaxAge(cfg.Session.MaxAge()))
	client := chat.NewClient(chat.Config{
		BaseURL:   cfg.Chat.BaseURL,
		AuthToken: cfg.Chat.AuthToken,
		Timeout:   cfg.Chat.Timeout(),
	})

	return &app{
		cfg:     cfg,
		loader:  loader,
		logger:  lg,
		tracer:  tracer,
		manager: manager,
		client:  client,
		runner:  conversation.NewRunner(manager, client, cfg.Chat.Timeout()),
	}, nil
}

// openStore picks the session backend named in the config.
func openStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryStore(cfg.StoreTTL()), nil
	case "file":
		store, err := session.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := session.NewSQLiteStore(cfg.DBPath, cfg.StoreTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// Close releases the store, flushes spans and closes log files.
func (a *app) Close() error {
	var errs []error
	if err := a.manager.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
