// Package insight enriches successful query results with heuristic
// analytics: breakdown counts when a multi-criteria question finds nothing,
// per-component population counts, cross-references between populations,
// key findings and an overall summary.
//
// The heuristics are data, not code. A CUE rule table (rules.cue, checked
// against schema.cue) names every trigger term and every SQL sub-query.
// SQL in the table is a text/template whose column references resolve
// through the store's schema-resolution roles, so the rules survive header
// drift between exports.
//
// Analyze never fails. A sub-query that cannot be rendered or executed
// degrades to an error entry in the section it belongs to.
package insight

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/assetq/internal/errs"
	"github.com/roach88/assetq/internal/schema"
	"github.com/roach88/assetq/internal/store"
)

// DefaultSlowThreshold separates the "slow" from the "fast" timing remark.
const DefaultSlowThreshold = time.Second

// Querier is the read surface the synthesizer needs. *store.Store
// implements it.
type Querier interface {
	Count(ctx context.Context, query string, args ...any) (int, error)
	Execute(ctx context.Context, query string, args ...any) ([]store.Record, error)
	Roles() schema.Roles
}

// rendered is one rule template expanded against the live schema.
type rendered struct {
	sql string
	err error
}

// Synthesizer runs the rule table against one database.
type Synthesizer struct {
	db    Querier
	rules *Rules
	sql   map[string]rendered
	log   *slog.Logger
	slow  time.Duration
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger for contained sub-query failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.log = l }
}

// WithSlowThreshold overrides DefaultSlowThreshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.slow = d
		}
	}
}

// New renders every SQL template in rules against db's roles. Rendering
// failures are kept and reported when the affected rule fires.
func New(db Querier, rules *Rules, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		db:    db,
		rules: rules,
		sql:   map[string]rendered{},
		log:   slog.Default(),
		slow:  DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := renderer{roles: db.Roles(), japanese: rules.JapaneseNames}
	add := func(name, src string) {
		if src == "" {
			return
		}
		if _, ok := s.sql[src]; ok {
			return
		}
		q, err := r.render(name, src)
		s.sql[src] = rendered{sql: q, err: err}
	}
	for _, b := range rules.Breakdowns {
		add(b.Key, b.SQL)
	}
	for _, in := range rules.Intersections {
		add(in.Key, in.SQL)
	}
	for _, sec := range rules.Sections {
		for _, c := range sec.Items {
			add(c.Name, c.SQL)
		}
	}
	for _, ci := range rules.ComponentIntersections {
		add(ci.Name, ci.SQL)
	}
	for _, x := range rules.CrossRefs {
		add(x.Title, x.SQL)
		add(x.Title+" base", x.BaseSQL)
	}
	return s
}

// Rules returns the rule table in use.
func (s *Synthesizer) Rules() *Rules { return s.rules }

func (s *Synthesizer) query(src string) (string, error) {
	r, ok := s.sql[src]
	if !ok {
		return "", errs.New(errs.KindAnalysis, "insight.render", "rule SQL was not prepared")
	}
	if r.err != nil {
		return "", errs.Wrap(errs.KindAnalysis, "insight.render", "rule SQL", r.err)
	}
	return r.sql, nil
}

func (s *Synthesizer) count(ctx context.Context, src string) (int, error) {
	q, err := s.query(src)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Count(ctx, q)
	if err != nil {
		return 0, errs.Wrap(errs.KindAnalysis, "insight.count", "sub-query failed", err)
	}
	return n, nil
}

func (s *Synthesizer) rows(ctx context.Context, src string) ([]store.Record, error) {
	q, err := s.query(src)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Execute(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.KindAnalysis, "insight.rows", "sub-query failed", err)
	}
	return rows, nil
}

func (s *Synthesizer) contained(rule string, err error) string {
	s.log.Warn("analysis sub-query failed", "rule", rule, "error", err)
	return errs.Message(err)
}
