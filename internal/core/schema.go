// Package core is the statement layer of the record store.
//
// A Metadata registry holds table definitions. Tables build inert
// statements (Insert, Select) that render to dialect-specific SQL only when
// executed against an explicit connection:
//
//	md := core.NewMetadata()
//	queries, err := md.DefineTable("queries",
//		core.Column{Name: "id", Type: core.Integer, PrimaryKey: true},
//		core.Column{Name: "keywords", Type: core.String(400), NotNull: true},
//		core.Column{Name: "count", Type: core.Integer, Default: 0},
//	)
//	err = md.CreateAll(ctx, engine)
//	res, err := core.Execute(ctx, conn, queries.Insert(core.Values{"keywords": "Trump", "count": 5}))
//	id := res.InsertedPrimaryKey()
package core

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/deppfellow/countstore/internal/database"
	"github.com/deppfellow/countstore/internal/errs"
)

// Kind is the storage class of a column.
type Kind int

const (
	KindInteger Kind = iota + 1
	KindString
)

// Type is a column type. Size bounds string columns; zero means unbounded.
type Type struct {
	Kind Kind
	Size int
}

// Integer is a 64-bit integer column type.
var Integer = Type{Kind: KindInteger}

// String returns a string column type holding at most size characters.
func String(size int) Type {
	return Type{Kind: KindString, Size: size}
}

func (t Type) String() string {
	switch t.Kind {
	case KindInteger:
		return "INTEGER"
	case KindString:
		if t.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Size)
		}
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

// Column describes one column of a table.
//
// An integer primary key is assigned by the engine on insert and never reused.
// Default applies only when an insert leaves the column out; it must be nil,
// an int/int64, or a string.
type Column struct {
	Name       string
	Type       Type
	PrimaryKey bool
	NotNull    bool
	Default    any
}

func (c Column) equal(o Column) bool {
	return c.Name == o.Name &&
		c.Type == o.Type &&
		c.PrimaryKey == o.PrimaryKey &&
		c.NotNull == o.NotNull &&
		c.Default == o.Default
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table is a registered table schema. It is immutable once defined.
type Table struct {
	name    string
	columns []Column
	index   map[string]int
	pk      int
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the columns in definition order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in definition order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// PrimaryKey returns the primary key column, if the table has one.
func (t *Table) PrimaryKey() (Column, bool) {
	if t.pk < 0 {
		return Column{}, false
	}
	return t.columns[t.pk], true
}

// Metadata is the registry of table definitions. Tables are created in the
// order they were defined.
type Metadata struct {
	tables map[string]*Table
	order  []string
}

// NewMetadata returns an empty registry.
func NewMetadata() *Metadata {
	return &Metadata{tables: make(map[string]*Table)}
}

// DefineTable registers a table schema.
//
// Defining the same name again with identical columns returns the existing
// table. A conflicting redefinition, or an invalid definition, fails with
// *errs.SchemaError.
func (m *Metadata) DefineTable(name string, columns ...Column) (*Table, error) {
	t, err := newTable(name, columns)
	if err != nil {
		return nil, err
	}

	if existing, ok := m.tables[name]; ok {
		if !sameColumns(existing.columns, t.columns) {
			return nil, errs.NewSchemaError(name, "table already defined with different columns")
		}
		return existing, nil
	}

	m.tables[name] = t
	m.order = append(m.order, name)
	return t, nil
}

// Table returns a defined table by name.
func (m *Metadata) Table(name string) (*Table, bool) {
	t, ok := m.tables[name]
	return t, ok
}

// MustTable is Table for callers that defined the table themselves.
// A missing table is reported as *errs.SchemaError.
func (m *Metadata) MustTable(name string) (*Table, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, errs.NewSchemaError(name, "table is not defined")
	}
	return t, nil
}

// Tables returns every table in definition order.
func (m *Metadata) Tables() []*Table {
	out := make([]*Table, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.tables[name])
	}
	return out
}

// CreateAll materializes every defined table that does not exist yet.
// Calling it again on the same engine is a no-op.
func (m *Metadata) CreateAll(ctx context.Context, conn database.Conn) error {
	for _, t := range m.Tables() {
		ddl := CreateTableSQL(t, conn.Dialect())
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return errs.WrapSchemaError(t.name, "create table failed: "+err.Error(), err)
		}
	}
	return nil
}

func newTable(name string, columns []Column) (*Table, error) {
	if !identifier.MatchString(name) {
		return nil, errs.NewSchemaError(name, "invalid table name")
	}
	if len(columns) == 0 {
		return nil, errs.NewSchemaError(name, "table needs at least one column")
	}

	t := &Table{
		name:    name,
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		pk:      -1,
	}

	for _, c := range columns {
		if !identifier.MatchString(c.Name) {
			return nil, errs.NewSchemaError(name, fmt.Sprintf("invalid column name %q", c.Name))
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, errs.NewSchemaError(name, fmt.Sprintf("duplicate column %q", c.Name))
		}
		if c.Type.Kind != KindInteger && c.Type.Kind != KindString {
			return nil, errs.NewSchemaError(name, fmt.Sprintf("column %q has no type", c.Name))
		}
		if c.Type.Size < 0 {
			return nil, errs.NewSchemaError(name, fmt.Sprintf("column %q has a negative size", c.Name))
		}

		def, err := normalizeDefault(c)
		if err != nil {
			return nil, errs.NewSchemaError(name, err.Error())
		}
		c.Default = def

		if c.PrimaryKey {
			if t.pk >= 0 {
				return nil, errs.NewSchemaError(name, "only one primary key column is supported")
			}
			if c.Type.Kind != KindInteger {
				return nil, errs.NewSchemaError(name, fmt.Sprintf("primary key %q must be an integer", c.Name))
			}
			c.NotNull = true
			t.pk = len(t.columns)
		}

		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c)
	}

	return t, nil
}

func normalizeDefault(c Column) (any, error) {
	switch v := c.Default.(type) {
	case nil:
		return nil, nil
	case int:
		if c.Type.Kind != KindInteger {
			return nil, fmt.Errorf("column %q: integer default on a string column", c.Name)
		}
		return int64(v), nil
	case int64:
		if c.Type.Kind != KindInteger {
			return nil, fmt.Errorf("column %q: integer default on a string column", c.Name)
		}
		return v, nil
	case string:
		if c.Type.Kind != KindString {
			return nil, fmt.Errorf("column %q: string default on an integer column", c.Name)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("column %q: unsupported default of type %T", c.Name, c.Default)
	}
}

func sameColumns(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

// CreateTableSQL renders the idempotent DDL for t in dialect d.
func CreateTableSQL(t *Table, d database.Dialect) string {
	defs := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		defs = append(defs, columnDDL(t, c, d))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(t.name), strings.Join(defs, ", "))
}

func columnDDL(t *Table, c Column, d database.Dialect) string {
	col := d.QuoteIdent(c.Name)

	if c.PrimaryKey {
		if d == database.Postgres {
			return col + " BIGSERIAL PRIMARY KEY"
		}
		return col + " INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT"
	}

	var b strings.Builder
	b.WriteString(col)
	b.WriteString(" ")
	if c.Type.Kind == KindInteger && d == database.Postgres {
		b.WriteString("BIGINT")
	} else {
		b.WriteString(c.Type.String())
	}

	if c.NotNull {
		b.WriteString(" NOT NULL")
	}

	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(literal(c.Default))
	}

	// SQLite ignores VARCHAR lengths, so the bound is a named CHECK.
	if c.Type.Kind == KindString && c.Type.Size > 0 && d == database.SQLite {
		fmt.Fprintf(&b, " CONSTRAINT %s CHECK (length(%s) <= %d)",
			d.QuoteIdent(t.name+"_"+c.Name+"_length"), col, c.Type.Size)
	}

	return b.String()
}

func literal(v any) string {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return "NULL"
	}
}
