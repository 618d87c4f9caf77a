package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoScript is returned by ScriptedOracle for questions it has no answer for.
var ErrNoScript = errors.New("no scripted response for question")

// ScriptedOracle answers GenerateSQL from a fixed question→response table.
//
// Lookup is case-insensitive on the trimmed question. A response may be an
// error (set via Fail). Calls are counted per question so tests can verify
// cache behaviour.
//
// Thread-safety: ScriptedOracle is safe for concurrent use.
type ScriptedOracle struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     map[string]int
	schemas   []string
}

// NewScriptedOracle creates an oracle with the given question→SQL table.
func NewScriptedOracle(responses map[string]string) *ScriptedOracle {
	o := &ScriptedOracle{
		responses: make(map[string]string, len(responses)),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
	for q, sql := range responses {
		o.responses[scriptKey(q)] = sql
	}
	return o
}

// Fail makes question return err.
func (o *ScriptedOracle) Fail(question string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[scriptKey(question)] = err
}

// GenerateSQL returns the scripted response for question.
func (o *ScriptedOracle) GenerateSQL(ctx context.Context, question, schema string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := scriptKey(question)
	o.calls[key]++
	o.schemas = append(o.schemas, schema)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := o.failures[key]; ok {
		return "", err
	}
	if sql, ok := o.responses[key]; ok {
		return sql, nil
	}
	return "", ErrNoScript
}

// Calls returns how many times question was asked.
func (o *ScriptedOracle) Calls(question string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[scriptKey(question)]
}

// TotalCalls returns the number of GenerateSQL calls.
func (o *ScriptedOracle) TotalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		n += c
	}
	return n
}

// LastSchema returns the schema text passed on the most recent call.
func (o *ScriptedOracle) LastSchema() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.schemas) == 0 {
		return ""
	}
	return o.schemas[len(o.schemas)-1]
}

func scriptKey(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
