// Package record defines the labeled count stored by countstore.
//
// Record is a plain struct. Its table lives in a core.Metadata and its
// mapping is registered on an orm.Registry by Register.
package record

import (
	"fmt"

	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/orm"
)

// TableName is the table records are stored in.
const TableName = "queries"

// Column names of the records table.
const (
	ColumnID       = "id"
	ColumnKeywords = "keywords"
	ColumnCount    = "count"
)

// MaxKeywordsLength bounds the keywords column, in characters.
const MaxKeywordsLength = 400

// Record is a keyword label paired with a count.
// ID is zero until the engine assigns one.
type Record struct {
	ID       int64
	Keywords string
	Count    int64
}

func (r Record) String() string {
	return fmt.Sprintf("Record(id=%d, keywords=%q, count=%d)", r.ID, r.Keywords, r.Count)
}

// Columns returns the schema of the records table.
func Columns() []core.Column {
	return []core.Column{
		{Name: ColumnID, Type: core.Integer, PrimaryKey: true},
		{Name: ColumnKeywords, Type: core.String(MaxKeywordsLength), NotNull: true},
		{Name: ColumnCount, Type: core.Integer, Default: 0},
	}
}

// Define registers the records table on md.
func Define(md *core.Metadata) (*core.Table, error) {
	return md.DefineTable(TableName, Columns()...)
}

// Mapping maps Record onto tbl.
func Mapping(tbl *core.Table) orm.Mapping[Record] {
	return orm.Mapping[Record]{
		Table: tbl,
		Values: func(r *Record) core.Values {
			return core.Values{
				ColumnKeywords: r.Keywords,
				ColumnCount:    r.Count,
			}
		},
		Load: func(r *Record, row core.Row) {
			*r = FromRow(row)
		},
		ID: func(r *Record) int64 { return r.ID },
	}
}

// Register defines the records table on md and maps Record onto it in reg.
func Register(reg *orm.Registry, md *core.Metadata) (*core.Table, error) {
	tbl, err := Define(md)
	if err != nil {
		return nil, err
	}
	if err := orm.Register(reg, Mapping(tbl)); err != nil {
		return nil, err
	}
	return tbl, nil
}

// FromRow builds a Record from a row of the records table. A NULL count
// reads as zero.
func FromRow(row core.Row) Record {
	var r Record
	r.ID, _ = row.Int64(ColumnID)
	r.Keywords, _ = row.Text(ColumnKeywords)
	r.Count, _ = row.Int64(ColumnCount)
	return r
}
