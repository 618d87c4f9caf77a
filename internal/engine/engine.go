package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/assetq/internal/cache"
	"github.com/roach88/assetq/internal/errs"
	"github.com/roach88/assetq/internal/insight"
	"github.com/roach88/assetq/internal/oracle"
	"github.com/roach88/assetq/internal/search"
)

// MinQuestionLength is the shortest question accepted, in characters.
const MinQuestionLength = 3

// Store is the database surface the pipeline needs. *store.Store
// implements it.
type Store interface {
	insight.Querier
	Describe() string
	Ping(ctx context.Context) error
}

// ProviderInfo describes the configured oracle for status reports.
type ProviderInfo struct {
	Name  string
	Model string
	// Connected reports whether credentials are configured.
	Connected bool
}

// Service answers questions.
//
// Thread-safety: Search and Status are safe for concurrent use. Identical
// questions in flight at the same time may both reach the oracle.
type Service struct {
	store    Store
	oracle   oracle.Oracle
	synth    *insight.Synthesizer
	searcher *search.Searcher
	cache    *cache.Cache[QueryResult]
	ids      RequestIDGenerator
	clock    Clock
	log      *slog.Logger
	limit    int
	info     ProviderInfo
}

// Option configures a Service.
type Option func(*Service)

// WithRequestIDs sets the request id generator (default UUIDv7Generator).
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock sets the time source for execution timings.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithCache supplies the result cache, e.g. to share it or inspect it in
// tests. A fresh cache is created otherwise.
func WithCache(c *cache.Cache[QueryResult]) Option {
	return func(s *Service) { s.cache = c }
}

// WithSearchLimit sets the keyword fallback limit (default search.DefaultLimit).
func WithSearchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithProviderInfo sets what Status reports about the oracle.
func WithProviderInfo(info ProviderInfo) Option {
	return func(s *Service) { s.info = info }
}

// New creates a Service. synth must have been built over db.
func New(db Store, orc oracle.Oracle, synth *insight.Synthesizer, opts ...Option) *Service {
	s := &Service{
		store:  db,
		oracle: orc,
		synth:  synth,
		ids:    UUIDv7Generator{},
		clock:  SystemClock{},
		log:    slog.Default(),
		limit:  search.DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New[QueryResult]()
	}
	s.searcher = search.New(db, search.WithLogger(s.log), search.WithClock(s.clock.Now))
	return s
}

// Search answers req. The only error returns are validation failures
// (errs.KindValidation) and cancellation of ctx; pipeline failures are
// reported inside the result.
func (s *Service) Search(ctx context.Context, req Request) (*QueryResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errs.New(errs.KindValidation, "engine.search", "Question is required")
	}
	if utf8.RuneCountInString(question) < MinQuestionLength {
		return nil, errs.New(errs.KindValidation, "engine.search", "Question too short")
	}
	typ := strings.ToLower(strings.TrimSpace(req.Type))
	if typ == "" {
		typ = TypeCombined
	}

	var res QueryResult
	switch typ {
	case TypeCombined:
		res = s.combined(ctx, question)
	case TypeNL2SQL:
		res = s.nl2sqlOnly(ctx, question)
	case TypeKeyword:
		res = s.keyword(ctx, question)
		res.Method = LabelKeyword
	default:
		return nil, errs.New(errs.KindValidation, "engine.search",
			fmt.Sprintf("unknown search type %q (want %s, %s or %s)", req.Type, TypeCombined, TypeNL2SQL, TypeKeyword))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.RequestID = s.ids.Generate()
	s.log.Info("search",
		"request_id", res.RequestID,
		"type", typ,
		"method", res.Method,
		"count", res.Count,
		"elapsed", res.ExecutionTime,
		"cached", res.Cached)
	return &res, nil
}

// combined tries the oracle path and falls back to keyword search when it
// fails or finds nothing.
func (s *Service) combined(ctx context.Context, question string) QueryResult {
	res, err := s.nl2sql(ctx, question, false)
	if err == nil && res.Count > 0 {
		res.Method = LabelCombinedPrimary
		return res
	}

	reason := "No results"
	if err != nil {
		reason = describe(err)
		s.log.Warn("oracle path failed", "error", err, "sql", res.SQL)
	}
	attempted := res.SQL
	if attempted == "" {
		attempted = "N/A"
	}

	fb := s.keyword(ctx, question)
	fb.Method = LabelCombinedFallback
	fb.FallbackReason = "NL2SQL failed: " + reason
	fb.AttemptedSQL = attempted
	return fb
}

// nl2sqlOnly runs the oracle path alone. Empty results are analysed so
// that the breakdown explains them.
func (s *Service) nl2sqlOnly(ctx context.Context, question string) QueryResult {
	res, err := s.nl2sql(ctx, question, true)
	res.Method = LabelNL2SQL
	if err != nil {
		res.Question = question
		res.Error = describe(err)
		res.Status = StatusAPIError
		if errs.IsSQL(err) {
			res.Status = StatusSQLError
		}
	}
	return res
}

// nl2sql answers from the cache or the oracle. On error the returned result
// still carries the SQL that was attempted, if any.
func (s *Service) nl2sql(ctx context.Context, question string, analyzeEmpty bool) (QueryResult, error) {
	start := s.clock.Now()
	res, hit, err := s.cache.GetOrCompute(question, func() (QueryResult, bool, error) {
		sql, err := s.oracle.GenerateSQL(ctx, question, s.store.Describe())
		if err != nil {
			return QueryResult{}, false, err
		}
		rows, err := s.store.Execute(ctx, sql)
		if err != nil {
			return QueryResult{SQL: sql}, false, err
		}
		elapsed := s.clock.Now().Sub(start)

		r := QueryResult{
			Question:      question,
			SQL:           sql,
			Results:       rows,
			Count:         len(rows),
			ExecutionTime: elapsed.Seconds(),
			Status:        StatusSuccess,
			Path:          MethodOracle,
		}
		if len(rows) > 0 || analyzeEmpty {
			r.Analysis = s.synth.Analyze(ctx, question, rows, elapsed)
		}
		return r, len(rows) > 0, nil
	})
	if err != nil {
		res.ExecutionTime = s.clock.Now().Sub(start).Seconds()
		return res, err
	}
	if hit {
		res.Question = question
		res.Cached = true
		res.Path = MethodOracleCached
	}
	return res, nil
}

func (s *Service) keyword(ctx context.Context, question string) QueryResult {
	r := s.searcher.Search(ctx, question, s.limit)
	return QueryResult{
		Question:      question,
		Query:         r.Query,
		Results:       r.Results,
		Count:         r.Count,
		ExecutionTime: r.ExecutionTime.Seconds(),
		Status:        r.Status,
		Path:          MethodKeywordFallback,
	}
}

// describe renders a pipeline error for fallback_reason and error fields.
func describe(err error) string {
	if errs.IsSQL(err) {
		return "SQL execution error: " + errs.Message(err)
	}
	return errs.Message(err)
}

// Status reports service health. Database connectivity is a ping with a
// two-second deadline.
func (s *Service) Status(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return Status{
		Status:            "running",
		OpenAIConnected:   s.info.Connected,
		DatabaseConnected: s.store.Ping(ctx) == nil,
		CacheSize:         s.cache.Len(),
		Provider:          s.info.Name,
		Model:             s.info.Model,
	}
}

// Schema returns the schema description given to the oracle.
func (s *Service) Schema() string {
	return s.store.Describe()
}

// CacheSize returns the number of cached oracle results.
func (s *Service) CacheSize() int {
	return s.cache.Len()
}
