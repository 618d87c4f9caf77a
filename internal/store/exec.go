package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/assetq/internal/errs"
)

// Record is one result row: column/value pairs in select order.
// All values are text; NULL is rendered as "".
type Record struct {
	Columns []string
	Values  map[string]string
}

// NewRecord builds a record from parallel column and value slices.
// A repeated column name keeps its first position and its last value.
func NewRecord(columns, values []string) Record {
	r := Record{
		Columns: make([]string, 0, len(columns)),
		Values:  make(map[string]string, len(columns)),
	}
	for i, c := range columns {
		if _, seen := r.Values[c]; !seen {
			r.Columns = append(r.Columns, c)
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.Values[c] = v
	}
	return r
}

// Get returns the value of col, falling back to a case-insensitive match.
func (r Record) Get(col string) string {
	if v, ok := r.Values[col]; ok {
		return v
	}
	for _, c := range r.Columns {
		if strings.EqualFold(c, col) {
			return r.Values[c]
		}
	}
	return ""
}

// MarshalJSON encodes the record as a flat object preserving column order.
// HTML escaping is disabled so values round-trip as written.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(c); err != nil {
			return nil, fmt.Errorf("marshal column: %w", err)
		}
		trimNewline(&buf)
		buf.WriteByte(':')
		if err := enc.Encode(r.Values[c]); err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		trimNewline(&buf)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat object, keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("unmarshal record: expected object")
	}
	r.Columns = nil
	r.Values = map[string]string{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("unmarshal record key: %w", err)
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("unmarshal record value: %w", err)
		}
		r.Columns = append(r.Columns, key)
		switch x := v.(type) {
		case nil:
			r.Values[key] = ""
		case string:
			r.Values[key] = x
		default:
			r.Values[key] = fmt.Sprint(x)
		}
	}
	_, err = dec.Token()
	return err
}

func trimNewline(buf *bytes.Buffer) {
	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}
}

// Execute guards and runs query, returning every row as a Record.
//
// Returns an empty slice (not nil) when the query matches nothing. Guard
// rejections and driver failures are errs.KindSQL.
func (s *Store) Execute(ctx context.Context, query string, args ...any) ([]Record, error) {
	if err := Guard(query); err != nil {
		return nil, err
	}
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindSQL, "store.execute", "query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.KindSQL, "store.execute", "read columns", err)
	}

	records := []Record{}
	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errs.Wrap(errs.KindSQL, "store.execute", "scan row", err)
		}
		values := make([]string, len(cols))
		for i, v := range raw {
			values[i] = v.String
		}
		records = append(records, NewRecord(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindSQL, "store.execute", "iterate rows", err)
	}
	return records, nil
}

// Count runs a guarded scalar query and returns its first column as an int.
// A query returning no rows counts as zero.
func (s *Store) Count(ctx context.Context, query string, args ...any) (int, error) {
	if err := Guard(query); err != nil {
		return 0, err
	}
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, errs.Wrap(errs.KindSQL, "store.count", "query failed", err)
	}
	return int(n.Int64), nil
}
