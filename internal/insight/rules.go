package insight

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE []byte

//go:embed rules.cue
var defaultRulesCUE []byte

// When selects questions by the terms they contain. An empty When matches
// every question.
type When struct {
	All  []string `json:"all,omitempty"`
	Any  []string `json:"any,omitempty"`
	None []string `json:"none,omitempty"`
}

// Family is a named group of terms used for complexity detection.
type Family struct {
	Name  string   `json:"name"`
	Terms []string `json:"terms"`
}

// Breakdown is one sub-count run when a multi-criteria question finds
// nothing.
type Breakdown struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	When  When   `json:"when"`
	SQL   string `json:"sql"`
}

// Intersection is a joint count over breakdowns that all ran.
type Intersection struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Requires    []string `json:"requires"`
	SQL         string   `json:"sql"`
	ZeroFinding string   `json:"zero_finding,omitempty"`
	Base        string   `json:"base,omitempty"`
}

// Suggestion is a query suggestion offered after an empty result.
type Suggestion struct {
	When           When   `json:"when"`
	UnlessPositive string `json:"unless_positive,omitempty"`
	Text           string `json:"text"`
}

// Component kinds.
const (
	KindCount = "count"
	KindGroup = "group"
)

// Component is one entry of the detailed breakdown.
type Component struct {
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	When     *When  `json:"when,omitempty"`
	SQL      string `json:"sql"`
	Kind     string `json:"kind"`
	HideZero bool   `json:"hide_zero"`
}

// Section groups components behind a shared trigger. A failure in any of
// its components replaces the whole section with one error entry.
type Section struct {
	Name      string      `json:"name"`
	ErrorName string      `json:"error_name"`
	When      When        `json:"when"`
	Items     []Component `json:"items"`
}

// ComponentIntersection is a joint count added once at least two
// components were computed.
type ComponentIntersection struct {
	Name     string   `json:"name"`
	Icon     string   `json:"icon"`
	Requires []string `json:"requires"`
	SQL      string   `json:"sql"`
}

// Base count modes.
const (
	BaseAlways = "always"
	BaseNone   = "none"
)

// CrossRef is a named cross-reference between two populations.
type CrossRef struct {
	Title       string `json:"title"`
	When        When   `json:"when"`
	SQL         string `json:"sql"`
	BaseSQL     string `json:"base_sql,omitempty"`
	BaseWhen    string `json:"base_when"`
	NoneMessage string `json:"none_message"`
	Blocker     string `json:"blocker,omitempty"`
	Note        string `json:"note,omitempty"`
	OmitOnError bool   `json:"omit_on_error"`
}

// AnalysisType labels a question by the first matching rule.
type AnalysisType struct {
	Name string `json:"name"`
	When When   `json:"when"`
}

// Rules is the full heuristic rule table.
type Rules struct {
	JapaneseNames          []string                `json:"japanese_names"`
	Families               []Family                `json:"families"`
	ComplexityThreshold    int                     `json:"complexity_threshold"`
	Breakdowns             []Breakdown             `json:"breakdowns"`
	Intersections          []Intersection          `json:"intersections"`
	Suggestions            []Suggestion            `json:"suggestions"`
	Sections               []Section               `json:"sections"`
	ComponentIntersections []ComponentIntersection `json:"component_intersections"`
	CrossRefs              []CrossRef              `json:"crossrefs"`
	AnalysisTypes          []AnalysisType          `json:"analysis_types"`
	DefaultAnalysisType    string                  `json:"default_analysis_type"`
}

// RulesError is a rule table that failed to compile or validate.
type RulesError struct {
	Message string
	Pos     token.Pos
}

func (e *RulesError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// DefaultRules returns the built-in rule table.
func DefaultRules() (*Rules, error) {
	return LoadRules("rules.cue", defaultRulesCUE)
}

// LoadRulesFile reads and validates a rule table from disk.
func LoadRulesFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return LoadRules(path, data)
}

// LoadRules compiles data, unifies it with the rule schema and decodes the
// concrete result. filename is used in error positions only.
func LoadRules(filename string, data []byte) (*Rules, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var r Rules
	if err := v.Decode(&r); err != nil {
		return nil, formatCUEError(err)
	}
	return &r, nil
}

// formatCUEError keeps the first error of a CUE error list along with its
// source position.
func formatCUEError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &RulesError{Message: err.Error()}
	}
	first := list[0]
	re := &RulesError{Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		re.Pos = pos[0]
	}
	return re
}
