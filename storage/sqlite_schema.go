package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entitysvc/metadata"
	"entitysvc/search"
)

var sqliteColumnTypes = map[metadata.ValueType]string{
	metadata.TypeString:   "TEXT",
	metadata.TypeInteger:  "INTEGER",
	metadata.TypeFloat:    "REAL",
	metadata.TypeBoolean:  "INTEGER",
	metadata.TypeDateTime: "TEXT", // TimeLayout text; a DATETIME column would be parsed by the driver
}

// SchemaStatements renders the DDL for a set of descriptors. Relation
// columns reference the related entity's table; the referenced table may be
// declared in any order.
func SchemaStatements(descs []*metadata.EntityDescriptor) []string {
	tables := make(map[string]string, len(descs))
	for _, d := range descs {
		tables[d.Key()] = d.TableName()
	}

	var stmts []string
	for _, d := range descs {
		stmts = append(stmts, tableStatements(d, tables)...)
	}
	return stmts
}

func tableStatements(d *metadata.EntityDescriptor, tables map[string]string) []string {
	table := d.TableName()
	columns := []string{fmt.Sprintf("%s TEXT PRIMARY KEY", search.QuoteIdentifier("id"))}
	var indexes []string

	for _, name := range d.FieldNames() {
		f, _ := d.Field(name)
		var col strings.Builder
		fmt.Fprintf(&col, "%s %s", search.QuoteIdentifier(f.Name), sqliteColumnTypes[f.Type])
		if f.Required {
			col.WriteString(" NOT NULL")
		}
		if f.Unique {
			col.WriteString(" UNIQUE")
		}
		if f.IsRelation() {
			relatedKey := d.RelatedKey(f)
			related, ok := tables[relatedKey]
			if !ok {
				related, _ = metadata.SplitKey(relatedKey)
			}
			fmt.Fprintf(&col, " REFERENCES %s(%s)", search.QuoteIdentifier(related), search.QuoteIdentifier("id"))
			indexes = append(indexes, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
				search.QuoteIdentifier("idx_"+table+"_"+f.Name),
				search.QuoteIdentifier(table),
				search.QuoteIdentifier(f.Name)))
		}
		columns = append(columns, col.String())
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		search.QuoteIdentifier(table), strings.Join(columns, ",\n\t"))
	return append([]string{create}, indexes...)
}

// EnsureSchema creates missing tables and indexes in one transaction
func (s *SQLite) EnsureSchema(ctx context.Context, descs []*metadata.EntityDescriptor) error {
	if s.isClosed() {
		return ErrDatabaseClosed
	}
	stmts := SchemaStatements(descs)
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
	if err != nil {
		return fault("ensure schema", err)
	}
	s.Logger.Infof("SQLite schema ensured for %d entity types", len(descs))
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
