// Package listview holds the per-view state machine behind every collection
// screen: it fetches rows, derives the visible (filtered, sorted) set, and
// dispatches delete, edit and insert requests to the backend.
package listview

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/logging"
	"swipedesk/internal/record"
	"swipedesk/internal/remote"
)

// Source is the remote collection a controller reads and mutates.
type Source interface {
	List(ctx context.Context, order remote.Order) ([]record.Row, error)
	Insert(ctx context.Context, fields map[string]any) (record.Row, error)
	UpdateByID(ctx context.Context, id string, patch map[string]any) (record.Row, error)
	DeleteByID(ctx context.Context, id string) error
}

type State int

const (
	Idle State = iota
	Loading
	Loaded
	Errored
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// Phase is what the view should render.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseEmpty
	PhaseReady
	PhaseErrored
)

const insertKey = "\x00insert"

type Controller struct {
	coll catalog.Collection
	src  Source
	log  *slog.Logger
	now  func() time.Time

	mu        sync.Mutex
	state     State
	rows      []record.Row
	query     string
	sortKey   string
	ascending bool
	loadErr   error
	lastErr   error
	notice    string
	editing   string
	pending   map[string]bool
	loadedAt  time.Time
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(coll catalog.Collection, src Source, opts ...Option) *Controller {
	c := &Controller{
		coll:      coll,
		src:       src,
		now:       time.Now,
		sortKey:   coll.OrderBy,
		ascending: coll.Ascending,
		pending:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDiscard(c.log).With("collection", coll.Name)
	return c
}

func (c *Controller) Collection() catalog.Collection { return c.coll }

// Load fetches the collection in its default order. It is also the retry and
// refresh path: rows already on screen stay until the new set arrives.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = Loading
	c.loadErr = nil
	c.mu.Unlock()

	rows, err := c.src.List(ctx, remote.Order{Column: c.coll.OrderBy, Ascending: c.coll.Ascending})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Errored
		c.loadErr = err
		c.lastErr = err
		c.log.Warn("load failed", "err", err)
		return err
	}
	c.rows = rows
	c.state = Loaded
	c.loadedAt = c.now()
	c.log.Debug("loaded", "rows", len(rows))
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase maps state and rows to one of the four renderings. A refresh over
// rows already shown stays Ready.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Errored:
		return PhaseErrored
	case Idle, Loading:
		if len(c.rows) == 0 {
			return PhaseLoading
		}
		return PhaseReady
	}
	if len(c.visibleLocked()) == 0 {
		return PhaseEmpty
	}
	return PhaseReady
}

// Refreshing reports a load in flight over rows already shown.
func (c *Controller) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Loading && len(c.rows) > 0
}

// Err is the load error, if the last load failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// LastError is the most recent failure of any request.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

func (c *Controller) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}

func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// SortBy sorts on key ascending, or flips direction when key is already the
// sort key.
func (c *Controller) SortBy(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == c.sortKey {
		c.ascending = !c.ascending
		return
	}
	c.sortKey = key
	c.ascending = true
}

func (c *Controller) ToggleSort() {
	c.mu.Lock()
	c.ascending = !c.ascending
	c.mu.Unlock()
}

func (c *Controller) Sort() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortKey, c.ascending
}

// Rows returns every fetched row in fetch order.
func (c *Controller) Rows() []record.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]record.Row, len(c.rows))
	copy(out, c.rows)
	return out
}

func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

func (c *Controller) Row(id string) (record.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := record.IndexOf(c.rows, id)
	if i < 0 {
		return nil, false
	}
	return c.rows[i].Clone(), true
}

// Visible is the filtered, sorted view of the fetched rows.
func (c *Controller) Visible() []record.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

func (c *Controller) visibleLocked() []record.Row {
	out := Filter(c.rows, c.query, c.coll.SearchFields)
	SortRows(out, c.sortKey, c.ascending)
	return out
}

// Filter keeps rows where any of fields contains query, ignoring case. The
// query is used as typed, surrounding spaces included. With no fields every
// field is searched. An empty query keeps everything.
func Filter(rows []record.Row, query string, fields []string) []record.Row {
	q := strings.ToLower(query)
	out := make([]record.Row, 0, len(rows))
	for _, r := range rows {
		if q == "" || rowMatches(r, q, fields) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatches(r record.Row, q string, fields []string) bool {
	if len(fields) == 0 {
		fields = r.Fields()
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(r.String(f)), q) {
			return true
		}
	}
	return false
}

// SortRows stable-sorts rows in place on key. Missing values go last in
// either direction.
func SortRows(rows []record.Row, key string, ascending bool) {
	if key == "" {
		return
	}
	type keyed struct {
		row     record.Row
		missing bool
		v       sortValue
	}
	ks := make([]keyed, len(rows))
	for i, r := range rows {
		raw := r.String(key)
		ks[i] = keyed{row: r, missing: raw == ""}
		if raw != "" {
			ks[i].v = parseSortValue(raw)
		}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		a, b := ks[i], ks[j]
		switch {
		case a.missing:
			return false
		case b.missing:
			return true
		}
		cmp := compareSortValues(a.v, b.v)
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
	for i := range ks {
		rows[i] = ks[i].row
	}
}

// beginLocked marks key in flight, or rejects it when it already is.
func (c *Controller) beginLocked(key string) error {
	if c.pending[key] {
		return apperr.Validation("", "request already in flight")
	}
	c.pending[key] = true
	return nil
}

func (c *Controller) finish(key string, err error) {
	c.mu.Lock()
	delete(c.pending, key)
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()
}

// Pending reports whether a mutation on id is in flight.
func (c *Controller) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id]
}

func (c *Controller) noun() string {
	if c.coll.Noun != "" {
		return c.coll.Noun
	}
	return "row"
}
