package listview

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/record"
)

// Confirm asks the operator to approve a destructive action on id.
type Confirm func(id string) bool

// RequestDelete deletes id after confirm approves. The remote call decides;
// local rows change only on success. It reports whether a local row was
// removed: an id that is not on screen deletes remotely and removes nothing.
func (c *Controller) RequestDelete(ctx context.Context, id string, confirm Confirm) (bool, error) {
	if !c.coll.Deletable {
		return false, apperr.Validation("", fmt.Sprintf("%ss cannot be deleted here", c.noun()))
	}
	if id == "" {
		return false, apperr.Validation(record.FieldID, "no row selected")
	}
	if confirm != nil && !confirm(id) {
		return false, nil
	}

	c.mu.Lock()
	if err := c.beginLocked(id); err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.mu.Unlock()

	err := c.src.DeleteByID(ctx, id)
	c.finish(id, err)
	if err != nil {
		c.log.Warn("delete failed", "id", id, "err", err)
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := false
	if i := record.IndexOf(c.rows, id); i >= 0 {
		c.rows = append(c.rows[:i:i], c.rows[i+1:]...)
		removed = true
	}
	if c.editing == id {
		c.editing = ""
	}
	c.notice = capitalize(c.noun()) + " deleted."
	c.log.Info("deleted", "id", id, "local", removed)
	return removed, nil
}

// BeginEdit enters edit mode for id.
func (c *Controller) BeginEdit(id string) error {
	if !c.coll.Editable() {
		return apperr.Validation("", fmt.Sprintf("%ss are read-only here", c.noun()))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if record.IndexOf(c.rows, id) < 0 {
		return apperr.Validation(record.FieldID, "no row selected")
	}
	c.editing = id
	return nil
}

func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editing = ""
	c.mu.Unlock()
}

// Editing returns the id in edit mode, if any.
func (c *Controller) Editing() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing, c.editing != ""
}

// RequestUpdate writes patch to id. The collection's edit field is trimmed
// and must not be blank. On failure the controller stays in edit mode.
func (c *Controller) RequestUpdate(ctx context.Context, id string, patch map[string]any) (record.Row, error) {
	if !c.coll.Editable() {
		return nil, apperr.Validation("", fmt.Sprintf("%ss are read-only here", c.noun()))
	}
	clean := make(map[string]any, len(patch))
	for k, v := range patch {
		clean[k] = v
	}
	field := c.coll.EditField
	text := strings.TrimSpace(record.FormatValue(clean[field]))
	if text == "" {
		label := c.coll.EditLabel
		if label == "" {
			label = field
		}
		return nil, apperr.Validation(field, label+" cannot be empty!")
	}
	clean[field] = text

	c.mu.Lock()
	if err := c.beginLocked(id); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	updated, err := c.src.UpdateByID(ctx, id, clean)
	c.finish(id, err)
	if err != nil {
		c.log.Warn("update failed", "id", id, "err", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var merged record.Row
	if i := record.IndexOf(c.rows, id); i >= 0 {
		merged = c.rows[i].Merge(clean).Merge(updated)
		c.rows[i] = merged
	} else {
		merged = updated.Merge(clean)
	}
	if c.editing == id {
		c.editing = ""
	}
	c.notice = capitalize(c.noun()) + " updated."
	c.log.Info("updated", "id", id, "field", field)
	return merged.Clone(), nil
}

// RequestInsert validates and coerces form and inserts it. The returned row
// is prepended to the local set. form is never modified.
func (c *Controller) RequestInsert(ctx context.Context, form map[string]string) (record.Row, error) {
	if !c.coll.Insertable() {
		return nil, apperr.Validation("", fmt.Sprintf("%ss cannot be added here", c.noun()))
	}
	fields, err := BuildInsert(c.coll, form)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if err := c.beginLocked(insertKey); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	row, err := c.src.Insert(ctx, fields)
	c.finish(insertKey, err)
	if err != nil {
		c.log.Warn("insert failed", "err", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append([]record.Row{row}, c.rows...)
	c.notice = capitalize(c.noun()) + " added."
	c.log.Info("inserted", "id", row.ID())
	return row.Clone(), nil
}

// Inserting reports whether an insert is in flight.
func (c *Controller) Inserting() bool {
	return c.Pending(insertKey)
}

// BuildInsert turns raw form input into the field map sent to the backend.
// Required fields must be non-blank; integer fields are parsed; blank
// optional fields are sent as null.
func BuildInsert(coll catalog.Collection, form map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(coll.InsertFields))
	for _, f := range coll.InsertFields {
		raw := strings.TrimSpace(form[f.Name])
		if raw == "" {
			if f.Required {
				return nil, apperr.Validation(f.Name, label(f)+" is required.")
			}
			out[f.Name] = nil
			continue
		}
		switch f.Kind {
		case catalog.KindInt:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, apperr.Validation(f.Name, label(f)+" must be a whole number.")
			}
			out[f.Name] = n
		default:
			out[f.Name] = raw
		}
	}
	return out, nil
}

func label(f catalog.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
