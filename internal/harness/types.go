package harness

// TraceEvent records one question and the answer it got.
type TraceEvent struct {
	Seq            int    `json:"seq"`
	Question       string `json:"question"`
	Type           string `json:"type,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Method         string `json:"method,omitempty"`
	Status         string `json:"status"`
	Count          int    `json:"count"`
	Cached         bool   `json:"cached,omitempty"`
	SQL            string `json:"sql,omitempty"`
	AttemptedSQL   string `json:"attempted_sql,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	AnalysisType   string `json:"analysis_type,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StatusRejected marks a question the pipeline refused to answer.
const StatusRejected = "rejected"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends ev to the trace, numbering it.
func (r *Result) AddEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
