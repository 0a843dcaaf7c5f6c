package core

import (
	"fmt"
	"maps"
	"strings"

	"github.com/deppfellow/countstore/internal/database"
	"github.com/deppfellow/countstore/internal/errs"
)

// Values maps column names to the values of one row.
type Values map[string]any

// Statement is an inert description of an insert or a select. Building one
// never touches storage; SQL renders it for a dialect.
type Statement interface {
	fmt.Stringer
	Table() *Table
	SQL(d database.Dialect) (string, []any, error)
}

// Operator is a predicate comparison.
type Operator int

const (
	OpEqual Operator = iota + 1
	OpPrefix
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpPrefix:
		return "starts-with"
	default:
		return "unknown"
	}
}

// Predicate filters rows on one column.
type Predicate struct {
	Column   string
	Operator Operator
	Value    any
}

// Eq matches rows whose column equals value. A nil value matches NULL.
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Operator: OpEqual, Value: value}
}

// HasPrefix matches rows whose string column starts with prefix.
//
// It renders as LIKE with % and _ escaped, so it inherits the engine's LIKE
// case rules (SQLite folds ASCII case, PostgreSQL does not).
func HasPrefix(column, prefix string) Predicate {
	return Predicate{Column: column, Operator: OpPrefix, Value: prefix}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Column, p.Operator, p.Value)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// InsertStatement inserts one row into a table.
type InsertStatement struct {
	table  *Table
	values Values
}

// Insert builds an insert of values into t. Columns left out fall back to
// their defaults. Unknown columns are reported when the statement renders.
func (t *Table) Insert(values Values) *InsertStatement {
	return &InsertStatement{table: t, values: maps.Clone(values)}
}

// Values returns a new statement with more column values merged in.
func (s *InsertStatement) Values(values Values) *InsertStatement {
	merged := maps.Clone(s.values)
	if merged == nil {
		merged = make(Values, len(values))
	}
	maps.Copy(merged, values)
	return &InsertStatement{table: s.table, values: merged}
}

func (s *InsertStatement) Table() *Table { return s.table }

// SQL renders the insert. Every column is returned so the assigned primary
// key and applied defaults come back with the row.
func (s *InsertStatement) SQL(d database.Dialect) (string, []any, error) {
	t := s.table
	for name := range s.values {
		if _, ok := t.index[name]; !ok {
			return "", nil, unknownColumn(t, name)
		}
	}

	var (
		cols   []string
		params []string
		args   []any
	)
	for _, c := range t.columns {
		v, ok := s.values[c.Name]
		if !ok {
			continue
		}
		args = append(args, v)
		cols = append(cols, d.QuoteIdent(c.Name))
		params = append(params, d.Placeholder(len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s ", d.QuoteIdent(t.name))
	if len(cols) == 0 {
		b.WriteString("DEFAULT VALUES")
	} else {
		fmt.Fprintf(&b, "(%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(params, ", "))
	}
	fmt.Fprintf(&b, " RETURNING %s", columnList(t, d))

	return b.String(), args, nil
}

func (s *InsertStatement) String() string {
	return render(s)
}

// SelectStatement selects every column of a table, optionally filtered by a
// conjunction of predicates, ordered by primary key.
type SelectStatement struct {
	table      *Table
	predicates []Predicate
}

// Select builds a select over t. All predicates must hold for a row to match.
func (t *Table) Select(predicates ...Predicate) *SelectStatement {
	return &SelectStatement{table: t, predicates: append([]Predicate(nil), predicates...)}
}

// Where returns a new statement with more predicates.
func (s *SelectStatement) Where(predicates ...Predicate) *SelectStatement {
	all := make([]Predicate, 0, len(s.predicates)+len(predicates))
	all = append(all, s.predicates...)
	all = append(all, predicates...)
	return &SelectStatement{table: s.table, predicates: all}
}

func (s *SelectStatement) Table() *Table { return s.table }

// Predicates returns the statement's filters.
func (s *SelectStatement) Predicates() []Predicate {
	return append([]Predicate(nil), s.predicates...)
}

func (s *SelectStatement) SQL(d database.Dialect) (string, []any, error) {
	t := s.table

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columnList(t, d), d.QuoteIdent(t.name))

	var (
		conds []string
		args  []any
	)
	for _, p := range s.predicates {
		c, ok := t.Column(p.Column)
		if !ok {
			return "", nil, unknownColumn(t, p.Column)
		}
		col := d.QuoteIdent(c.Name)

		switch p.Operator {
		case OpEqual:
			if p.Value == nil {
				conds = append(conds, col+" IS NULL")
				continue
			}
			args = append(args, p.Value)
			conds = append(conds, col+" = "+d.Placeholder(len(args)))

		case OpPrefix:
			if c.Type.Kind != KindString {
				return "", nil, errs.NewExecutionError("INVALID_PREDICATE",
					fmt.Sprintf("prefix match on non-string column %q", c.Name), nil)
			}
			prefix, ok := p.Value.(string)
			if !ok {
				return "", nil, errs.NewExecutionError("INVALID_PREDICATE",
					fmt.Sprintf("prefix for column %q must be a string", c.Name), nil)
			}
			args = append(args, likeEscaper.Replace(prefix)+"%")
			conds = append(conds, col+" LIKE "+d.Placeholder(len(args))+` ESCAPE '\'`)

		default:
			return "", nil, errs.NewExecutionError("INVALID_PREDICATE",
				fmt.Sprintf("unsupported operator %d on column %q", p.Operator, c.Name), nil)
		}
	}

	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if pk, ok := t.PrimaryKey(); ok {
		fmt.Fprintf(&b, " ORDER BY %s", d.QuoteIdent(pk.Name))
	}

	return b.String(), args, nil
}

func (s *SelectStatement) String() string {
	return render(s)
}

func columnList(t *Table, d database.Dialect) string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = d.QuoteIdent(c.Name)
	}
	return strings.Join(cols, ", ")
}

func unknownColumn(t *Table, name string) error {
	return errs.NewConstraintError(
		"UNKNOWN_COLUMN",
		fmt.Sprintf("table %q has no column %q", t.name, name),
		t.name, name, nil, nil,
	)
}

// render shows a statement the way it would run on SQLite.
func render(s Statement) string {
	query, _, err := s.SQL(database.SQLite)
	if err != nil {
		return "<invalid statement: " + err.Error() + ">"
	}
	return query
}
