// Package search is the keyword fallback used when the oracle path fails or
// finds nothing: a case-insensitive substring match of the whole question
// over a fixed set of device and user columns.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/assetq/internal/queryir"
	"github.com/roach88/assetq/internal/querysql"
	"github.com/roach88/assetq/internal/schema"
	"github.com/roach88/assetq/internal/store"
)

// DefaultLimit is the number of hits returned when the caller passes 0.
const DefaultLimit = 10

// Similarity is the fixed score attached to every keyword hit.
const Similarity = 0.8

// Hit types.
const (
	TypeDevice = "device"
	TypeUser   = "user"
)

// Querier is the subset of the store the searcher needs.
type Querier interface {
	Execute(ctx context.Context, query string, args ...any) ([]store.Record, error)
	Roles() schema.Roles
}

// Hit is one matching row.
type Hit struct {
	Type        string       `json:"type"`
	SourceTable string       `json:"source_table"`
	Similarity  float64      `json:"similarity"`
	Data        store.Record `json:"data"`
}

// Result is the outcome of a keyword search. Status is always "success".
type Result struct {
	Query         string        `json:"query"`
	Method        string        `json:"method"`
	Results       []Hit         `json:"results"`
	Count         int           `json:"count"`
	ExecutionTime time.Duration `json:"-"`
	Status        string        `json:"status"`
}

// target describes one searched table.
type target struct {
	table    string
	hitType  string
	selected []schema.Role
	matched  []schema.Role
}

var targets = []target{
	{
		table:   schema.Devices,
		hitType: TypeDevice,
		selected: []schema.Role{
			schema.AssetNumber, schema.DeviceType, schema.Manufacturer, schema.ModelName,
			schema.DeviceStatus, schema.AssignedEmail, schema.City, schema.Region,
		},
		matched: []schema.Role{
			schema.AssetNumber, schema.DeviceType, schema.Manufacturer, schema.AssignedEmail, schema.City,
		},
	},
	{
		table:   schema.Provisions,
		hitType: TypeUser,
		selected: []schema.Role{
			schema.UserID, schema.FirstName, schema.LastName, schema.Email,
			schema.UserRole, schema.Status, schema.WorkLocation,
		},
		matched: []schema.Role{
			schema.UserID, schema.FirstName, schema.LastName, schema.Email, schema.UserRole,
		},
	},
}

// Searcher runs keyword searches against a store.
type Searcher struct {
	db       Querier
	compiler *querysql.SQLCompiler
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger for table failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.log = l }
}

// WithClock sets the time source used to measure execution time.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// New creates a Searcher over db.
func New(db Querier, opts ...Option) *Searcher {
	s := &Searcher{
		db:       db,
		compiler: querysql.NewSQLCompiler(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search matches term against each table, taking at most limit/2 hits per
// table, devices first, and truncates the merged list to limit.
//
// Search never fails: a table that errors is logged and contributes no hits.
func (s *Searcher) Search(ctx context.Context, term string, limit int) Result {
	start := s.now()
	if limit <= 0 {
		limit = DefaultLimit
	}
	perTable := limit / 2

	hits := []Hit{}
	if perTable > 0 {
		roles := s.db.Roles()
		for _, tg := range targets {
			rows, err := s.searchTable(ctx, roles, tg, term, perTable)
			if err != nil {
				s.log.Warn("keyword search failed", "table", tg.table, "error", err)
				continue
			}
			for _, r := range rows {
				hits = append(hits, Hit{
					Type:        tg.hitType,
					SourceTable: tg.table,
					Similarity:  Similarity,
					Data:        r,
				})
			}
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	return Result{
		Query:         term,
		Method:        "keyword_fallback",
		Results:       hits,
		Count:         len(hits),
		ExecutionTime: s.now().Sub(start),
		Status:        "success",
	}
}

func (s *Searcher) searchTable(ctx context.Context, roles schema.Roles, tg target, term string, limit int) ([]store.Record, error) {
	q := queryir.Select{
		From:    tg.table,
		Columns: columns(roles, tg.table, tg.selected),
		Filter:  queryir.AnyLike(columns(roles, tg.table, tg.matched), queryir.Contains(term)),
		Limit:   limit,
	}
	sql, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.Execute(ctx, sql, params...)
}

func columns(roles schema.Roles, table string, rs []schema.Role) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, roles.MustCol(table, r))
	}
	return out
}
