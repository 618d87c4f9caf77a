package engine

import (
	"github.com/roach88/assetq/internal/insight"
)

// Method is the path that produced a result.
type Method string

const (
	// MethodOracle is a freshly generated and executed oracle query.
	MethodOracle Method = "oracle"

	// MethodOracleCached is an oracle result served from the cache.
	MethodOracleCached Method = "oracle_cached"

	// MethodKeywordFallback is a keyword search result.
	MethodKeywordFallback Method = "keyword_fallback"
)

// Search types accepted in a Request.
const (
	TypeCombined = "combined"
	TypeNL2SQL   = "nl2sql"
	TypeKeyword  = "keyword"
)

// Outward method labels reported to clients.
const (
	LabelCombinedPrimary  = "combined_nl2sql_primary"
	LabelCombinedFallback = "combined_keyword_fallback"
	LabelNL2SQL           = "nl2sql"
	LabelKeyword          = "keyword_fallback"
)

// Result statuses.
const (
	StatusSuccess  = "success"
	StatusSQLError = "sql_error"
	StatusAPIError = "api_error"
)

// Request is one question to answer.
type Request struct {
	Question string `json:"question"`
	Type     string `json:"type"`
}

// QueryResult is the answer to a Request.
//
// Results holds []store.Record on the oracle path and []search.Hit on the
// fallback path. The insight fields are present only on oracle results that
// were analysed.
type QueryResult struct {
	RequestID      string  `json:"request_id"`
	Question       string  `json:"question"`
	Query          string  `json:"query,omitempty"`
	SQL            string  `json:"sql,omitempty"`
	Results        any     `json:"results"`
	Count          int     `json:"count"`
	ExecutionTime  float64 `json:"execution_time"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	Cached         bool    `json:"cached"`
	Error          string  `json:"error,omitempty"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
	AttemptedSQL   string  `json:"attempted_sql,omitempty"`

	*insight.Analysis

	// Path is the internal method; Method is its outward label.
	Path Method `json:"-"`
}

// Status describes the running service.
type Status struct {
	Status            string `json:"status"`
	OpenAIConnected   bool   `json:"openai_connected"`
	DatabaseConnected bool   `json:"database_connected"`
	CacheSize         int    `json:"cache_size"`
	Provider          string `json:"provider"`
	Model             string `json:"model"`
}
