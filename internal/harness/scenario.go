package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted conversation with the pipeline.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Exports are the CSV files loaded before the flow runs.
	Exports Exports `yaml:"exports"`

	// Oracle scripts the SQL oracle. Unscripted questions fail.
	Oracle []OracleStep `yaml:"oracle,omitempty"`

	// Flow is the sequence of questions asked.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked after the flow completes.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Exports locates the source CSV files.
type Exports struct {
	Devices    string `yaml:"devices"`
	Provisions string `yaml:"provisions"`
	// Portfolio is optional.
	Portfolio string `yaml:"portfolio,omitempty"`
}

// OracleStep scripts one oracle answer. Exactly one of SQL and Error is set.
type OracleStep struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// FlowStep asks one question.
type FlowStep struct {
	// Ask is the question text.
	Ask string `yaml:"ask"`

	// Type is the search type; empty means combined.
	Type string `yaml:"type,omitempty"`

	// Expect checks the answer. Nil skips checking.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause lists the answer properties to check. Unset fields are not
// checked; string fields marked as substrings match anywhere.
type ExpectClause struct {
	Method       string `yaml:"method,omitempty"`
	Status       string `yaml:"status,omitempty"`
	Count        *int   `yaml:"count,omitempty"`
	Cached       *bool  `yaml:"cached,omitempty"`
	SQL          string `yaml:"sql,omitempty"`
	AnalysisType string `yaml:"analysis_type,omitempty"`

	// Error is a substring of the answer's error or rejection message.
	Error string `yaml:"error,omitempty"`

	// FallbackReason is a substring of the fallback reason.
	FallbackReason string `yaml:"fallback_reason,omitempty"`

	// InsightsContain lists insights that must appear verbatim.
	InsightsContain []string `yaml:"insights_contain,omitempty"`
}

// Assertion checks the trace or the database after the flow.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Method is the outward method label (trace_contains, trace_count).
	Method string `yaml:"method,omitempty"`

	// Question narrows trace_contains; required by oracle_calls.
	Question string `yaml:"question,omitempty"`

	// Methods is the expected order (trace_order).
	Methods []string `yaml:"methods,omitempty"`

	// Table and Where select rows (row_count).
	Table string            `yaml:"table,omitempty"`
	Where map[string]string `yaml:"where,omitempty"`

	// Count is the expected number for trace_count, oracle_calls,
	// cache_size and row_count.
	Count int `yaml:"count"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertOracleCalls   = "oracle_calls"
	AssertCacheSize     = "cache_size"
	AssertRowCount      = "row_count"
)

// LoadScenario reads a scenario file, resolving export paths relative to
// the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&scenario.Exports.Devices, &scenario.Exports.Provisions, &scenario.Exports.Portfolio} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Exports.Devices == "" || s.Exports.Provisions == "" {
		return fmt.Errorf("exports.devices and exports.provisions are required")
	}
	for _, p := range []string{s.Exports.Devices, s.Exports.Provisions, s.Exports.Portfolio} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("export file not found: %s", p)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, o := range s.Oracle {
		if o.Question == "" {
			return fmt.Errorf("oracle[%d]: question is required", i)
		}
		if (o.SQL == "") == (o.Error == "") {
			return fmt.Errorf("oracle[%d]: exactly one of sql and error is required", i)
		}
	}
	for i, step := range s.Flow {
		if step.Ask == "" && (step.Expect == nil || step.Expect.Error == "") {
			return fmt.Errorf("flow[%d]: ask is required unless an error is expected", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains, AssertTraceCount:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Methods) == 0 {
			return fmt.Errorf("assertions[%d]: methods list is required for trace_order", index)
		}
	case AssertOracleCalls:
		if a.Question == "" {
			return fmt.Errorf("assertions[%d]: question is required for oracle_calls", index)
		}
	case AssertCacheSize:
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
