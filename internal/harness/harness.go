package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/assetq/internal/engine"
	"github.com/roach88/assetq/internal/errs"
	"github.com/roach88/assetq/internal/ingest"
	"github.com/roach88/assetq/internal/insight"
	"github.com/roach88/assetq/internal/store"
	"github.com/roach88/assetq/internal/testutil"
)

// ClockStep is how far the scenario clock advances per reading.
const ClockStep = 100 * time.Millisecond

// Harness holds the pipeline built for one scenario run.
type Harness struct {
	store  *store.Store
	svc    *engine.Service
	oracle *testutil.ScriptedOracle
	logger *slog.Logger
}

// Run executes scenario against a fresh database and returns the result.
// The error return is reserved for failures to set the scenario up; a
// scenario whose checks fail returns a Result with Pass false.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "assetq-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(scenario, filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  h.store,
		Oracle: h.oracle,
		Engine: h.svc,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, dbPath string) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := ingest.Load(ingest.Options{
		DevicesPath:    scenario.Exports.Devices,
		ProvisionsPath: scenario.Exports.Provisions,
		PortfolioPath:  scenario.Exports.Portfolio,
		DBPath:         dbPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load exports: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	rules, err := insight.DefaultRules()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	script := make(map[string]string, len(scenario.Oracle))
	for _, o := range scenario.Oracle {
		if o.SQL != "" {
			script[o.Question] = o.SQL
		}
	}
	orc := testutil.NewScriptedOracle(script)
	for _, o := range scenario.Oracle {
		if o.Error != "" {
			orc.Fail(o.Question, errs.New(errs.KindOracle, "oracle.generate", o.Error))
		}
	}

	svc := engine.New(st, orc, insight.New(st, rules, insight.WithLogger(logger)),
		engine.WithRequestIDs(engine.NewSequenceGenerator("req")),
		engine.WithClock(testutil.NewStepClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), ClockStep)),
		engine.WithLogger(logger),
		engine.WithProviderInfo(engine.ProviderInfo{Name: "scripted", Model: "scenario", Connected: true}),
	)

	return &Harness{store: st, svc: svc, oracle: orc, logger: logger}, nil
}

// executeFlow asks each question in order and records the answers.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		ev := TraceEvent{Question: step.Ask, Type: step.Type}
		var insights []string

		res, err := h.svc.Search(ctx, engine.Request{Question: step.Ask, Type: step.Type})
		switch {
		case err == nil:
			ev.RequestID = res.RequestID
			ev.Method = res.Method
			ev.Status = res.Status
			ev.Count = res.Count
			ev.Cached = res.Cached
			ev.SQL = res.SQL
			ev.AttemptedSQL = res.AttemptedSQL
			ev.FallbackReason = res.FallbackReason
			ev.Error = res.Error
			if res.Analysis != nil {
				ev.AnalysisType = res.AnalysisType
				insights = res.Insights
			}
		case errs.IsValidation(err):
			ev.Status = StatusRejected
			ev.Error = errs.Message(err)
		default:
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ev, insights) {
				result.AddError(fmt.Sprintf("flow[%d] %q: %s", i, step.Ask, msg))
			}
		}
		result.AddEvent(ev)
	}
	return nil
}

// checkExpect compares ev against exp and describes every mismatch.
func checkExpect(exp *ExpectClause, ev TraceEvent, insights []string) []string {
	var failures []string
	mismatch := func(field string, want, got any) {
		failures = append(failures, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	if exp.Method != "" && exp.Method != ev.Method {
		mismatch("method", exp.Method, ev.Method)
	}
	if exp.Status != "" && exp.Status != ev.Status {
		mismatch("status", exp.Status, ev.Status)
	}
	if exp.Count != nil && *exp.Count != ev.Count {
		mismatch("count", *exp.Count, ev.Count)
	}
	if exp.Cached != nil && *exp.Cached != ev.Cached {
		mismatch("cached", *exp.Cached, ev.Cached)
	}
	if exp.SQL != "" && exp.SQL != ev.SQL {
		mismatch("sql", exp.SQL, ev.SQL)
	}
	if exp.AnalysisType != "" && exp.AnalysisType != ev.AnalysisType {
		mismatch("analysis_type", exp.AnalysisType, ev.AnalysisType)
	}
	if exp.Error != "" && !strings.Contains(ev.Error, exp.Error) {
		mismatch("error", fmt.Sprintf("containing %q", exp.Error), fmt.Sprintf("%q", ev.Error))
	}
	if exp.FallbackReason != "" && !strings.Contains(ev.FallbackReason, exp.FallbackReason) {
		mismatch("fallback_reason", fmt.Sprintf("containing %q", exp.FallbackReason), fmt.Sprintf("%q", ev.FallbackReason))
	}
	for _, want := range exp.InsightsContain {
		if !slices.Contains(insights, want) {
			failures = append(failures, fmt.Sprintf("insights: missing %q", want))
		}
	}
	return failures
}
