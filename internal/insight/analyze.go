package insight

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/assetq/internal/store"
)

// Breakdown keys the key findings read.
const (
	keyLenovoUsers = "lenovo_users"
	keyAWSAdmins   = "aws_admins"
	keyNotionUsers = "notion_users"
	keyLenovoAWS   = "lenovo_aws"
	keyError       = "error"
)

// Matches reports whether the lowercased question q satisfies w.
func (w When) Matches(q string) bool {
	for _, t := range w.All {
		if !strings.Contains(q, t) {
			return false
		}
	}
	if containsAny(q, w.None) {
		return false
	}
	if len(w.Any) == 0 {
		return true
	}
	return containsAny(q, w.Any)
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// Complex reports whether question touches at least ComplexityThreshold
// criteria families.
func (r *Rules) Complex(question string) bool {
	q := strings.ToLower(question)
	n := 0
	for _, f := range r.Families {
		if containsAny(q, f.Terms) {
			n++
		}
	}
	return n >= r.ComplexityThreshold
}

// AnalysisTypeOf returns the first matching analysis type.
func (r *Rules) AnalysisTypeOf(question string) string {
	q := strings.ToLower(question)
	for _, t := range r.AnalysisTypes {
		if t.When.Matches(q) {
			return t.Name
		}
	}
	return r.DefaultAnalysisType
}

// Analyze enriches the rows an oracle query returned. elapsed is the time
// the oracle path took.
func (s *Synthesizer) Analyze(ctx context.Context, question string, rows []store.Record, elapsed time.Duration) *Analysis {
	q := strings.ToLower(question)
	a := &Analysis{
		Insights:      []string{},
		BreakdownData: map[string]any{},
		Suggestions:   []string{},
		KeyFindings:   []string{},
	}

	count := len(rows)
	if count == 0 {
		a.Insights = append(a.Insights, "❌ No results found matching your criteria.")
		if s.rules.Complex(question) {
			s.breakdown(ctx, q, a.BreakdownData)
			a.Insights = append(a.Insights, s.breakdownInsights(a.BreakdownData)...)
			a.Suggestions = append(a.Suggestions, s.suggestions(q, a.BreakdownData)...)
		}
	} else {
		a.Insights = append(a.Insights, fmt.Sprintf("✅ Found %d %s matching your criteria.", count, plural(count, "result")))
		if strings.Contains(q, "aws") && strings.Contains(q, "admin") {
			a.Insights = append(a.Insights, fmt.Sprintf("🔐 Security Note: %d %s with AWS administrative privileges found.", count, plural(count, "user")))
		}
		if strings.Contains(q, "japan") || containsAny(q, []string{"tomoyo", "mari", "kohei"}) {
			a.Insights = append(a.Insights, fmt.Sprintf("🗾 Geographic Analysis: Identified %d Japanese %s in the system.", count, plural(count, "employee")))
		}
		if strings.Contains(q, "laptop") || strings.Contains(q, "device") {
			mfg, n := majority(rows, "Manufacturer")
			a.Insights = append(a.Insights, fmt.Sprintf("🖥️ Hardware: %s is the primary manufacturer (%d devices)", mfg, n))
		}
		if strings.Contains(q, "notion") || strings.Contains(q, "license") {
			a.Insights = append(a.Insights, "📝 License Status: All results show active application licenses")
		}
	}

	if secs := elapsed.Seconds(); elapsed > s.slow {
		a.Insights = append(a.Insights, fmt.Sprintf("⏱️ Query executed in %.2fs - complex cross-table analysis performed.", secs))
	} else if elapsed > 0 {
		a.Insights = append(a.Insights, fmt.Sprintf("⚡ Fast execution: %.3fs", secs))
	}

	a.DetailedBreakdown = s.detailedBreakdown(ctx, q)
	a.KeyFindings = s.keyFindings(question, q, rows, a.BreakdownData)
	a.CrossReferences = s.crossReferences(ctx, q)
	a.AnalysisType = s.rules.AnalysisTypeOf(question)
	if count == 0 {
		a.ComprehensiveSummary = fmt.Sprintf("Query '%s' returned no results. Breakdown analysis provided to understand why criteria don't intersect.", question)
	} else {
		a.ComprehensiveSummary = fmt.Sprintf("Query '%s' successfully found %d matching records with detailed insights provided.", question, count)
	}
	return a
}

// breakdown fills data with the matching breakdown counts, then every
// intersection whose prerequisites are all present. The first failure
// is recorded under "error" and ends the pass.
func (s *Synthesizer) breakdown(ctx context.Context, q string, data map[string]any) {
	for _, b := range s.rules.Breakdowns {
		if !b.When.Matches(q) {
			continue
		}
		n, err := s.count(ctx, b.SQL)
		if err != nil {
			data[keyError] = s.contained(b.Key, err)
			return
		}
		data[b.Key] = n
	}
	for _, in := range s.rules.Intersections {
		if !hasAll(data, in.Requires) {
			continue
		}
		n, err := s.count(ctx, in.SQL)
		if err != nil {
			data[keyError] = s.contained(in.Key, err)
			return
		}
		data[in.Key] = n
	}
}

// breakdownInsights renders the breakdown counts. The header is emitted
// only above at least one count.
func (s *Synthesizer) breakdownInsights(data map[string]any) []string {
	if msg, ok := data[keyError].(string); ok {
		return []string{"⚠️ Analysis error: " + msg}
	}
	var out []string
	for _, b := range s.rules.Breakdowns {
		if n, ok := data[b.Key].(int); ok {
			out = append(out, fmt.Sprintf("  • %s: %d", b.Label, n))
		}
	}
	if len(out) == 0 {
		return nil
	}
	out = append([]string{"\n📊 Breakdown Analysis:"}, out...)
	for _, in := range s.rules.Intersections {
		n, ok := data[in.Key].(int)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("\n🔍 Cross-Reference: %s: %d users", in.Label, n))
		if n == 0 && in.ZeroFinding != "" && intOf(data, in.Base) > 0 {
			out = append(out, in.ZeroFinding)
		}
	}
	return out
}

func (s *Synthesizer) suggestions(q string, data map[string]any) []string {
	out := []string{}
	for _, sg := range s.rules.Suggestions {
		if !sg.When.Matches(q) {
			continue
		}
		if sg.UnlessPositive != "" && intOf(data, sg.UnlessPositive) > 0 {
			continue
		}
		out = append(out, sg.Text)
	}
	return out
}

func (s *Synthesizer) detailedBreakdown(ctx context.Context, q string) DetailedBreakdown {
	d := DetailedBreakdown{
		Title:         "Individual Components",
		Components:    []BreakdownEntry{},
		Intersections: []BreakdownEntry{},
	}
	for _, sec := range s.rules.Sections {
		if sec.When.Matches(q) {
			d.Components = append(d.Components, s.section(ctx, q, sec)...)
		}
	}
	if len(d.Components) > 1 {
		d.Intersections = s.componentIntersections(ctx, d.Components)
	}
	if n := len(d.Components); n > 0 {
		d.Summary = fmt.Sprintf("Analyzed %d %s across the organization", n, plural(n, "component"))
	}
	return d
}

// section computes a section's components in order. A failure appends one
// error entry and abandons the rest of the section.
func (s *Synthesizer) section(ctx context.Context, q string, sec Section) []BreakdownEntry {
	var out []BreakdownEntry
	for _, c := range sec.Items {
		if c.When != nil && !c.When.Matches(q) {
			continue
		}
		entries, err := s.component(ctx, c)
		if err != nil {
			return append(out, BreakdownEntry{Name: sec.ErrorName, Status: StatusError, Details: s.contained(c.Name, err)})
		}
		out = append(out, entries...)
	}
	return out
}

func (s *Synthesizer) component(ctx context.Context, c Component) ([]BreakdownEntry, error) {
	if c.Kind == KindGroup {
		rows, err := s.rows(ctx, c.SQL)
		if err != nil {
			return nil, err
		}
		out := make([]BreakdownEntry, 0, len(rows))
		for _, r := range rows {
			n, _ := strconv.Atoi(r.Get("count"))
			out = append(out, BreakdownEntry{
				Name:   fill(c.Name, struct{ Name string }{r.Get("name")}),
				Count:  n,
				Status: StatusSuccess,
				Icon:   c.Icon,
			})
		}
		return out, nil
	}

	n, err := s.count(ctx, c.SQL)
	if err != nil {
		return nil, err
	}
	if c.HideZero {
		if n == 0 {
			return nil, nil
		}
		return []BreakdownEntry{{Name: c.Name, Count: n, Status: StatusSuccess, Icon: c.Icon}}, nil
	}
	return []BreakdownEntry{{Name: c.Name, Count: n, Status: positive(n), Icon: c.Icon}}, nil
}

func (s *Synthesizer) componentIntersections(ctx context.Context, comps []BreakdownEntry) []BreakdownEntry {
	out := []BreakdownEntry{}
	for _, ci := range s.rules.ComponentIntersections {
		if !namesCover(comps, ci.Requires) {
			continue
		}
		n, err := s.count(ctx, ci.SQL)
		if err != nil {
			return append(out, BreakdownEntry{Name: "Intersection Analysis Error", Status: StatusError, Details: s.contained(ci.Name, err)})
		}
		out = append(out, BreakdownEntry{Name: ci.Name, Count: n, Status: positive(n), Icon: ci.Icon})
	}
	return out
}

func (s *Synthesizer) crossReferences(ctx context.Context, q string) []CrossReference {
	out := []CrossReference{}
	for _, x := range s.rules.CrossRefs {
		if !x.When.Matches(q) {
			continue
		}
		ref, err := s.crossReference(ctx, x)
		if err != nil {
			msg := s.contained(x.Title, err)
			if x.OmitOnError {
				continue
			}
			out = append(out, CrossReference{
				Type:    RefError,
				Title:   x.Title + " Analysis Error",
				Status:  RefError,
				Message: msg,
				Users:   []CrossRefUser{},
			})
			continue
		}
		out = append(out, ref)
	}
	return out
}

func (s *Synthesizer) crossReference(ctx context.Context, x CrossRef) (CrossReference, error) {
	ref := CrossReference{Type: RefIntersection, Title: x.Title, Note: x.Note, Users: []CrossRefUser{}}

	var base *int
	if x.BaseSQL != "" && x.BaseWhen == BaseAlways {
		n, err := s.count(ctx, x.BaseSQL)
		if err != nil {
			return ref, err
		}
		base = &n
	}

	rows, err := s.rows(ctx, x.SQL)
	if err != nil {
		return ref, err
	}

	if len(rows) == 0 {
		if x.BaseSQL != "" && base == nil {
			n, err := s.count(ctx, x.BaseSQL)
			if err != nil {
				return ref, err
			}
			base = &n
		}
		ref.Status = RefNone
		ref.TotalBase = base
		ref.Blocker = x.Blocker
		ref.Message = fill(x.NoneMessage, struct{ Base int }{intValue(base)})
		return ref, nil
	}

	ref.Status = RefFound
	ref.Count = len(rows)
	if x.BaseWhen == BaseAlways {
		ref.TotalBase = base
	}
	ref.Message = fmt.Sprintf("%d users found", len(rows))
	for _, r := range rows {
		ref.Users = append(ref.Users, newCrossRefUser(r))
	}
	return ref, nil
}

// keyFindings reads the breakdown data gathered on the zero-row path and
// scans result rows for the geography heuristic.
func (s *Synthesizer) keyFindings(question, q string, rows []store.Record, data map[string]any) []string {
	out := []string{}

	if strings.Contains(q, "aws") && strings.Contains(q, "admin") {
		if n := intOf(data, keyAWSAdmins); n > 0 {
			out = append(out, fmt.Sprintf("🔐 %d users have AWS Administrator access in the system", n))
			if len(rows) > 0 {
				title, c := majority(rows, "Job_Title")
				out = append(out, fmt.Sprintf("👔 Most AWS admins are %s: %d users", title, c))
			}
		}
	}

	if strings.Contains(q, "lenovo") || strings.Contains(q, "laptop") {
		if n := intOf(data, keyLenovoUsers); n > 0 {
			out = append(out, fmt.Sprintf("💻 %d employees are assigned Lenovo devices", n))
			if strings.Contains(q, "aws") && intOf(data, keyLenovoAWS) == 0 {
				out = append(out, "⚠️ No overlap between Lenovo users and AWS administrators")
			}
		}
	}

	if strings.Contains(q, "japan") {
		n := 0
		for _, r := range rows {
			first, _ := lookup(r, "First_Name")
			email, _ := lookup(r, "Email")
			if containsAny(strings.ToLower(first), s.rules.JapaneseNames) || strings.Contains(strings.ToLower(email), ".jp") {
				n++
			}
		}
		if n > 0 {
			out = append(out, fmt.Sprintf("🗾 %d users identified as likely Japanese employees", n))
		}
	}

	if strings.Contains(q, "notion") {
		if n := intOf(data, keyNotionUsers); n > 0 {
			out = append(out, fmt.Sprintf("📝 %d employees have active Notion licenses", n))
		}
	}

	if len(rows) == 0 && s.rules.Complex(question) {
		out = append(out,
			"🔍 Complex criteria analysis shows no users match all requirements simultaneously",
			"💡 Consider relaxing one or more criteria to find related users")
	}
	return out
}

// majority returns the most frequent value of col across rows and its
// frequency. Ties go to the value seen first. Rows without the column
// count as "Unknown".
func majority(rows []store.Record, col string) (string, int) {
	counts := map[string]int{}
	var order []string
	for _, r := range rows {
		v, ok := lookup(r, col)
		if !ok {
			v = "Unknown"
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best, n := "", 0
	for _, v := range order {
		if counts[v] > n {
			best, n = v, counts[v]
		}
	}
	return best, n
}

func lookup(r store.Record, col string) (string, bool) {
	if v, ok := r.Values[col]; ok {
		return v, true
	}
	for _, c := range r.Columns {
		if strings.EqualFold(c, col) {
			return r.Values[c], true
		}
	}
	return "", false
}

func namesCover(comps []BreakdownEntry, subs []string) bool {
	for _, sub := range subs {
		found := false
		for _, c := range comps {
			if strings.Contains(strings.ToLower(c.Name), sub) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAll(data map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return false
		}
	}
	return true
}

func intOf(data map[string]any, key string) int {
	n, _ := data[key].(int)
	return n
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func positive(n int) string {
	if n > 0 {
		return StatusSuccess
	}
	return StatusWarning
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
