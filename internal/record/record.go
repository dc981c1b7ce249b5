package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

// Row is one record of a remote collection. Values are kept as decoded from
// JSON (numbers as json.Number) so nothing is lost on the way back out.
type Row map[string]any

func (r Row) ID() string {
	return r.String(FieldID)
}

func (r Row) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

func (r Row) String(field string) string {
	return FormatValue(r[field])
}

func (r Row) Time(field string) (time.Time, bool) {
	return ParseTime(r.String(field))
}

func (r Row) CreatedAt() (time.Time, bool) {
	return r.Time(FieldCreatedAt)
}

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with patch applied on top.
func (r Row) Merge(patch map[string]any) Row {
	out := r.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Fields returns the row's keys with id and created_at first and the rest
// sorted.
func (r Row) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k == FieldID || k == FieldCreatedAt {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	head := make([]string, 0, 2)
	if _, ok := r[FieldID]; ok {
		head = append(head, FieldID)
	}
	if _, ok := r[FieldCreatedAt]; ok {
		head = append(head, FieldCreatedAt)
	}
	return append(head, keys...)
}

func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes PostgREST emits for timestamptz,
// timestamp and date columns. Values without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeRows decodes a JSON array of objects, keeping numbers exact.
func DecodeRows(data []byte) ([]Row, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []Row{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// DecodeRow decodes a single JSON object.
func DecodeRow(data []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return row, nil
}

// IndexOf returns the position of the row with the given id, or -1.
func IndexOf(rows []Row, id string) int {
	for i, r := range rows {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
