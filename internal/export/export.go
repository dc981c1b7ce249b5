package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"swipedesk/internal/catalog"
	"swipedesk/internal/record"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	Markdown Format = "md"
	YAML     Format = "yaml"
)

// ParseFormat accepts md/markdown and yaml/yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want md or yaml)", s)
	}
}

// Snapshot is one exported view: the rows on screen plus what produced them.
type Snapshot struct {
	Route      catalog.Route
	Rows       []record.Row
	Query      string
	SortKey    string
	Ascending  bool
	ExportedAt time.Time
}

type Exporter struct {
	overrideDir string
	cwd         string
	now         func() time.Time
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd, now: time.Now}, nil
}

// Export writes snap in format and returns the file path.
func (e *Exporter) Export(snap Snapshot, format Format) (string, error) {
	if snap.ExportedAt.IsZero() {
		snap.ExportedAt = e.now()
	}
	path := e.outputPath(snap, format)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	var data []byte
	switch format {
	case YAML:
		out, err := BuildYAML(snap)
		if err != nil {
			return "", err
		}
		data = out
	default:
		data = []byte(BuildMarkdown(snap))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func (e *Exporter) outputPath(snap Snapshot, format Format) string {
	dir := e.overrideDir
	if dir == "" {
		dir = filepath.Join(e.cwd, "exports")
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	name := safeFileName(strings.TrimPrefix(snap.Route.Path, "/"))
	stamp := snap.ExportedAt.UTC().Format("20060102-150405")
	return filepath.Join(dir, name+"-"+stamp+"."+string(format))
}

// BuildMarkdown renders snap as a heading, a metadata block and a table of
// the route's columns.
func BuildMarkdown(snap Snapshot) string {
	var b strings.Builder
	b.WriteString("# " + snap.Route.Label + "\n\n")
	b.WriteString("Exported: " + snap.ExportedAt.UTC().Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("collection: " + snap.Route.Collection.Name + "\n")
	b.WriteString(fmt.Sprintf("rows: %d\n", len(snap.Rows)))
	b.WriteString("query: " + safeValue(snap.Query) + "\n")
	if snap.SortKey != "" {
		dir := "desc"
		if snap.Ascending {
			dir = "asc"
		}
		b.WriteString("sort: " + snap.SortKey + " " + dir + "\n")
	}
	b.WriteString("```\n\n")

	if len(snap.Rows) == 0 {
		b.WriteString("_No rows._\n")
		return b.String()
	}

	cols := columnsFor(snap.Route.Collection, snap.Rows)
	b.WriteString("| ID |")
	for _, c := range cols {
		b.WriteString(" " + cell(c.Title) + " |")
	}
	b.WriteString("\n|---|")
	for range cols {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for _, r := range snap.Rows {
		b.WriteString("| " + cell(r.ID()) + " |")
		for _, c := range cols {
			b.WriteString(" " + cell(r.String(c.Field)) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RowMarkdown renders one row as a two-column field table, every field
// included.
func RowMarkdown(title string, row record.Row) string {
	var b strings.Builder
	b.WriteString("## " + title + "\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, f := range row.Fields() {
		b.WriteString("| " + cell(f) + " | " + cell(row.String(f)) + " |\n")
	}
	return b.String()
}

func columnsFor(coll catalog.Collection, rows []record.Row) []catalog.Column {
	if len(coll.Columns) > 0 {
		return coll.Columns
	}
	var cols []catalog.Column
	for _, f := range rows[0].Fields() {
		if f == record.FieldID {
			continue
		}
		cols = append(cols, catalog.Column{Field: f, Title: f})
	}
	return cols
}

type yamlDoc struct {
	Collection string           `yaml:"collection"`
	Route      string           `yaml:"route"`
	ExportedAt string           `yaml:"exported_at"`
	Query      string           `yaml:"query,omitempty"`
	Sort       string           `yaml:"sort,omitempty"`
	Count      int              `yaml:"count"`
	Rows       []map[string]any `yaml:"rows"`
}

func BuildYAML(snap Snapshot) ([]byte, error) {
	doc := yamlDoc{
		Collection: snap.Route.Collection.Name,
		Route:      snap.Route.Path,
		ExportedAt: snap.ExportedAt.UTC().Format(time.RFC3339),
		Query:      strings.TrimSpace(snap.Query),
		Count:      len(snap.Rows),
		Rows:       make([]map[string]any, 0, len(snap.Rows)),
	}
	if snap.SortKey != "" {
		doc.Sort = snap.SortKey + " desc"
		if snap.Ascending {
			doc.Sort = snap.SortKey + " asc"
		}
	}
	for _, r := range snap.Rows {
		doc.Rows = append(doc.Rows, PlainRow(r))
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

// PlainRow converts JSON numbers to Go numbers so encoders other than
// encoding/json print them as numbers.
func PlainRow(r record.Row) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = plain(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	default:
		return v
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.TrimSpace(s)
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "export"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}
