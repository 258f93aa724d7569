package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"entitysvc/core"
	"entitysvc/metadata"
)

// entityDocument is the structured rendering of an entity. Relations are
// rendered as the related identifier.
func entityDocument(e *core.Entity) map[string]any {
	if e == nil {
		return nil
	}
	doc := e.Values()
	for k, v := range doc {
		if ref, ok := v.(core.Reference); ok {
			doc[k] = ref.ID
		}
	}
	doc[core.IdentifierField] = e.ID
	doc["_type"] = e.Type
	return doc
}

// outcomeDocument is the structured rendering of an action outcome
func outcomeDocument(o core.Outcome) map[string]any {
	doc := map[string]any{"action": o.Action.String()}
	switch o.Action {
	case core.ActionCreate, core.ActionRead, core.ActionUpdate:
		doc["entity"] = entityDocument(o.Entity)
	case core.ActionDelete:
		doc["deleted"] = o.Deleted
	case core.ActionList:
		rows := make([]map[string]any, len(o.Entities))
		for i, e := range o.Entities {
			rows[i] = entityDocument(e)
		}
		doc["entities"] = rows
	case core.ActionCount:
		doc["count"] = o.Count
	}
	return doc
}

// renderOutcome prints an outcome as JSON, YAML or text
func renderOutcome(w io.Writer, opts *globalOptions, o core.Outcome) error {
	if done, err := opts.emit(w, outcomeDocument(o)); done {
		return err
	}

	switch o.Action {
	case core.ActionCreate, core.ActionRead, core.ActionUpdate:
		if !opts.quiet {
			successColor.Fprintf(w, "%s %s\n", o.Action, o.Entity.Type)
		}
		renderEntity(w, o.Entity)
	case core.ActionDelete:
		successColor.Fprintln(w, "Deleted")
	case core.ActionList:
		renderEntities(w, o.Entities)
	case core.ActionCount:
		fmt.Fprintln(w, o.Count)
	}
	return nil
}

// renderEntity prints one entity as an aligned field list
func renderEntity(w io.Writer, e *core.Entity) {
	fields := e.Fields()
	width := len(core.IdentifierField)
	for _, f := range fields {
		width = max(width, len(f))
	}

	headerColor.Fprintf(w, "%-*s  %s\n", width, core.IdentifierField, e.ID)
	for _, f := range fields {
		v, _ := e.Get(f)
		fmt.Fprintf(w, "%-*s  %s\n", width, f, formatValue(v))
	}
}

// renderEntities prints entities as a table with one column per field
func renderEntities(w io.Writer, entities []*core.Entity) {
	if len(entities) == 0 {
		warningColor.Fprintln(w, "No entities found")
		return
	}

	columnSet := make(map[string]struct{})
	for _, e := range entities {
		for _, f := range e.Fields() {
			columnSet[f] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet)+1)
	for c := range columnSet {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	columns = append([]string{core.IdentifierField}, columns...)

	cells := make([][]string, len(entities))
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for r, e := range entities {
		cells[r] = make([]string, len(columns))
		for i, c := range columns {
			v, _ := e.Get(c)
			if c == core.IdentifierField {
				v = e.ID
			}
			cells[r][i] = formatValue(v)
			widths[i] = max(widths[i], len(cells[r][i]))
		}
	}

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = fmt.Sprintf("%-*s", widths[i], strings.ToUpper(c))
	}
	headerColor.Fprintln(w, strings.Join(header, "  "))
	for _, row := range cells {
		for i := range row {
			row[i] = fmt.Sprintf("%-*s", widths[i], row[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(row, "  "), " "))
	}
	infoColor.Fprintf(w, "%d row(s)\n", len(entities))
}

// renderDescriptor prints the declared fields of one entity type
func renderDescriptor(w io.Writer, d *metadata.EntityDescriptor) {
	headerColor.Fprintf(w, "%s (table %s)\n", d.Key(), d.TableName())
	fmt.Fprintf(w, "%-20s %-10s %-10s %s\n", "FIELD", "KIND", "TYPE", "FLAGS")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-20s %-10s %-10s %s\n", core.IdentifierField, metadata.KindScalar, metadata.TypeString, "primary")

	for _, name := range d.FieldNames() {
		f, _ := d.Field(name)
		var flags []string
		if f.Required {
			flags = append(flags, "required")
		}
		if f.Unique {
			flags = append(flags, "unique")
		}
		if f.IsRelation() {
			flags = append(flags, "-> "+d.RelatedKey(f))
		}
		fmt.Fprintf(w, "%-20s %-10s %-10s %s\n", f.Name, f.Kind, f.Type, strings.Join(flags, ", "))
	}
}

// formatValue renders a field value for text output
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case core.Reference:
		return val.ID
	default:
		return fmt.Sprint(val)
	}
}
