package insight

import (
	"encoding/json"
	"strings"

	"github.com/roach88/assetq/internal/store"
)

// Entry statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Cross-reference statuses and types.
const (
	RefFound        = "found"
	RefNone         = "none"
	RefError        = "error"
	RefIntersection = "intersection"
)

// Analysis is the enrichment attached to a successful oracle result.
type Analysis struct {
	Insights             []string          `json:"insights"`
	BreakdownData        map[string]any    `json:"breakdown_data"`
	DetailedBreakdown    DetailedBreakdown `json:"detailed_breakdown"`
	Suggestions          []string          `json:"suggestions"`
	KeyFindings          []string          `json:"key_findings"`
	CrossReferences      []CrossReference  `json:"cross_references"`
	AnalysisType         string            `json:"analysis_type"`
	ComprehensiveSummary string            `json:"comprehensive_summary"`
}

// DetailedBreakdown lists per-component population counts.
type DetailedBreakdown struct {
	Title         string           `json:"title"`
	Components    []BreakdownEntry `json:"components"`
	Intersections []BreakdownEntry `json:"intersections"`
	Summary       string           `json:"summary"`
}

// BreakdownEntry is one component or intersection count.
type BreakdownEntry struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Status  string `json:"status"`
	Icon    string `json:"icon,omitempty"`
	Details string `json:"details,omitempty"`
}

// CrossReference lists the users in the overlap of two populations.
type CrossReference struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Status    string         `json:"status"`
	Count     int            `json:"count"`
	TotalBase *int           `json:"total_base,omitempty"`
	Message   string         `json:"message"`
	Blocker   string         `json:"blocker,omitempty"`
	Note      string         `json:"note,omitempty"`
	Users     []CrossRefUser `json:"users"`
}

// CrossRefUser is one user in a cross-reference. Attributes holds the
// remaining selected columns in select order.
type CrossRefUser struct {
	Name       string
	Email      string
	Attributes store.Record
}

func newCrossRefUser(r store.Record) CrossRefUser {
	u := CrossRefUser{
		Name:  strings.TrimSpace(r.Get("first_name") + " " + r.Get("last_name")),
		Email: r.Get("email"),
	}
	var cols, vals []string
	for _, c := range r.Columns {
		switch strings.ToLower(c) {
		case "first_name", "last_name", "email":
			continue
		}
		cols = append(cols, c)
		vals = append(vals, r.Values[c])
	}
	u.Attributes = store.NewRecord(cols, vals)
	return u
}

// MarshalJSON flattens the user into {"name", "email", attributes...}.
func (u CrossRefUser) MarshalJSON() ([]byte, error) {
	cols := append([]string{"name", "email"}, u.Attributes.Columns...)
	vals := []string{u.Name, u.Email}
	for _, c := range u.Attributes.Columns {
		vals = append(vals, u.Attributes.Values[c])
	}
	return json.Marshal(store.NewRecord(cols, vals))
}

// UnmarshalJSON reverses MarshalJSON.
func (u *CrossRefUser) UnmarshalJSON(data []byte) error {
	var r store.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	u.Name = r.Values["name"]
	u.Email = r.Values["email"]
	var cols, vals []string
	for _, c := range r.Columns {
		if c == "name" || c == "email" {
			continue
		}
		cols = append(cols, c)
		vals = append(vals, r.Values[c])
	}
	u.Attributes = store.NewRecord(cols, vals)
	return nil
}
