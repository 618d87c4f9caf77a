// Package oracle turns a question plus a schema description into candidate
// SQL by asking a language model.
//
// The model is treated as an untrusted text generator: its output is cleaned
// of markdown fences here and guarded by the store before execution. Calls
// are never retried and are always bounded by a deadline.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/assetq/internal/errs"
)

// SystemMessage is sent with every completion request.
const SystemMessage = "You are an expert SQL developer. Generate only SQL queries, no explanations."

// Default completion bounds.
const (
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.1
	DefaultTimeout     = 30 * time.Second
)

// Oracle produces candidate SQL for a question.
type Oracle interface {
	GenerateSQL(ctx context.Context, question, schema string) (string, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, question, schema string) (string, error)

// GenerateSQL calls f.
func (f Func) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	return f(ctx, question, schema)
}

// Provider is a chat-completion backend. Complete returns the raw model text.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Adapter is the Oracle built on a Provider: it renders the prompt, bounds
// the call with a timeout, cleans the reply and classifies failures.
type Adapter struct {
	provider Provider
	timeout  time.Duration
	log      *slog.Logger
}

// NewAdapter wraps p. A non-positive timeout uses DefaultTimeout.
func NewAdapter(p Provider, timeout time.Duration, log *slog.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{provider: p, timeout: timeout, log: log}
}

// Provider returns the wrapped provider.
func (a *Adapter) Provider() Provider {
	return a.provider
}

// GenerateSQL implements Oracle. Every failure is an errs.KindOracle error,
// including an empty reply.
func (a *Adapter) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	prompt, err := BuildPrompt(schema, question)
	if err != nil {
		return "", errs.Wrap(errs.KindOracle, "oracle.generate", "build prompt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.provider.Complete(ctx, SystemMessage, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", a.timeout, err)
		}
		return "", errs.Wrap(errs.KindOracle, "oracle.generate",
			fmt.Sprintf("%s API error", a.provider.Name()), err)
	}

	sql := CleanSQL(raw)
	a.log.Debug("oracle reply",
		"provider", a.provider.Name(),
		"model", a.provider.Model(),
		"elapsed", time.Since(start),
		"sql", sql)

	if sql == "" {
		return "", errs.New(errs.KindOracle, "oracle.generate", "oracle returned no SQL")
	}
	return sql, nil
}
