package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"swipedesk/internal/apperr"
	"swipedesk/internal/record"
)

// Order is a PostgREST ordering on one column.
type Order struct {
	Column    string
	Ascending bool
}

func (o Order) param() string {
	dir := "desc"
	if o.Ascending {
		dir = "asc"
	}
	return o.Column + "." + dir
}

// Collection is the client bound to one backend table.
type Collection struct {
	c       *Client
	name    string
	columns string
}

func (c *Client) Collection(name string) *Collection {
	return &Collection{c: c, name: name, columns: "*"}
}

// Select returns a copy of the collection that fetches only columns.
func (t *Collection) Select(columns string) *Collection {
	columns = strings.TrimSpace(columns)
	if columns == "" {
		columns = "*"
	}
	return &Collection{c: t.c, name: t.name, columns: columns}
}

func (t *Collection) Name() string { return t.name }

func (t *Collection) path() string {
	return "/rest/v1/" + url.PathEscape(t.name)
}

func (t *Collection) op(verb string) string {
	return verb + " " + t.name
}

func (t *Collection) List(ctx context.Context, order Order) ([]record.Row, error) {
	return t.list(ctx, order, 0)
}

// Recent lists at most limit rows in the given order.
func (t *Collection) Recent(ctx context.Context, order Order, limit int) ([]record.Row, error) {
	return t.list(ctx, order, limit)
}

func (t *Collection) list(ctx context.Context, order Order, limit int) ([]record.Row, error) {
	q := url.Values{}
	q.Set("select", t.columns)
	if order.Column != "" {
		q.Set("order", order.param())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	resp, err := t.c.do(ctx, request{op: t.op("list"), method: http.MethodGet, path: t.path(), query: q})
	if err != nil {
		return nil, err
	}
	rows, err := record.DecodeRows(resp.body)
	if err != nil {
		return nil, apperr.Remote(t.op("list"), err)
	}
	return rows, nil
}

// Count asks for the exact row count without transferring rows.
func (t *Collection) Count(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("select", "*")
	h := http.Header{}
	h.Set("Prefer", "count=exact")
	resp, err := t.c.do(ctx, request{
		op:      t.op("count"),
		method:  http.MethodHead,
		path:    t.path(),
		query:   q,
		header:  h,
		discard: true,
	})
	if err != nil {
		return 0, err
	}
	n, err := parseContentRange(resp.header.Get("Content-Range"))
	if err != nil {
		return 0, apperr.Remote(t.op("count"), err)
	}
	return n, nil
}

// parseContentRange reads the total out of "0-24/3573" or "*/0".
func parseContentRange(v string) (int, error) {
	v = strings.TrimSpace(v)
	slash := strings.LastIndex(v, "/")
	if slash < 0 || slash == len(v)-1 {
		return 0, fmt.Errorf("missing total in content-range %q", v)
	}
	total := v[slash+1:]
	if total == "*" {
		return 0, fmt.Errorf("backend did not report an exact count (content-range %q)", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad total in content-range %q", v)
	}
	return n, nil
}

func (t *Collection) Insert(ctx context.Context, fields map[string]any) (record.Row, error) {
	h := http.Header{}
	h.Set("Prefer", "return=representation")
	q := url.Values{}
	q.Set("select", "*")
	resp, err := t.c.do(ctx, request{
		op:     t.op("insert"),
		method: http.MethodPost,
		path:   t.path(),
		query:  q,
		body:   fields,
		header: h,
	})
	if err != nil {
		return nil, err
	}
	return t.single(t.op("insert"), resp.body)
}

// UpdateByID patches the row with the given id. The backend is
// authoritative: an id it does not know is reported as a not-found
// RemoteError.
func (t *Collection) UpdateByID(ctx context.Context, id string, patch map[string]any) (record.Row, error) {
	h := http.Header{}
	h.Set("Prefer", "return=representation")
	q := url.Values{}
	q.Set(record.FieldID, "eq."+id)
	q.Set("select", "*")
	resp, err := t.c.do(ctx, request{
		op:     t.op("update"),
		method: http.MethodPatch,
		path:   t.path(),
		query:  q,
		body:   patch,
		header: h,
	})
	if err != nil {
		return nil, err
	}
	return t.single(t.op("update"), resp.body)
}

// DeleteByID removes the row with the given id. A row that is already gone
// counts as deleted.
func (t *Collection) DeleteByID(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set(record.FieldID, "eq."+id)
	h := http.Header{}
	h.Set("Prefer", "return=minimal")
	_, err := t.c.do(ctx, request{
		op:      t.op("delete"),
		method:  http.MethodDelete,
		path:    t.path(),
		query:   q,
		header:  h,
		allow:   []int{http.StatusNotFound},
		discard: true,
	})
	return err
}

// FindOne returns the first row whose column equals value.
func (t *Collection) FindOne(ctx context.Context, column, value string) (record.Row, error) {
	q := url.Values{}
	q.Set("select", t.columns)
	q.Set(column, "eq."+value)
	q.Set("limit", "1")
	resp, err := t.c.do(ctx, request{op: t.op("lookup"), method: http.MethodGet, path: t.path(), query: q})
	if err != nil {
		return nil, err
	}
	return t.single(t.op("lookup"), resp.body)
}

func (t *Collection) single(op string, body []byte) (record.Row, error) {
	rows, err := record.DecodeRows(body)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	if len(rows) == 0 {
		return nil, &apperr.RemoteError{Op: op, Status: http.StatusNotFound, Message: "no matching row"}
	}
	return rows[0], nil
}
