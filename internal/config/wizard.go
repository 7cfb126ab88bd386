package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizardIO creates a wizard over arbitrary streams.
func NewWizardIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== ezoverthinking Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	// Chat backend
	fmt.Fprintln(w.out, "Chat backend:")
	for {
		fmt.Fprintf(w.out, "Base URL [%s]: ", cfg.Chat.BaseURL)
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if raw == "" {
			break
		}
		if err := validator.ValidateBaseURL(raw); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Chat.BaseURL = raw
		break
	}

	for {
		fmt.Fprintf(w.out, "Auth token [%s]: ", cfg.Chat.AuthToken)
		token, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if token == "" {
			break
		}
		if err := validator.ValidateAuthToken(token); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Chat.AuthToken = token
		break
	}

	fmt.Fprintln(w.out)

	// Session storage
	fmt.Fprintln(w.out, "Session storage options:")
	fmt.Fprintln(w.out, "  memory - Lost when the process exits")
	fmt.Fprintln(w.out, "  file   - One JSON document per session (default)")
	fmt.Fprintln(w.out, "  sqlite - Single SQLite database")
	fmt.Fprintf(w.out, "Backend [%s]: ", cfg.Session.Backend)
	backend, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if backend != "" {
		if err := validator.ValidateBackend(backend); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (%s)\n", err, cfg.Session.Backend)
		} else {
			cfg.Session.Backend = backend
		}
	}

	fmt.Fprintf(w.out, "Session max age in hours [%d]: ", cfg.Session.MaxAgeHours)
	hours, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if hours != "" {
		n, err := strconv.Atoi(hours)
		if err != nil || n <= 0 {
			fmt.Fprintf(w.out, "Warning: invalid max age %q, using default (%d)\n", hours, cfg.Session.MaxAgeHours)
		} else {
			cfg.Session.MaxAgeHours = n
		}
	}

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprint(w.out, "Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
