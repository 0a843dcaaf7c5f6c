package repository

import (
	"context"

	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/database"
	loggerPkg "github.com/deppfellow/countstore/internal/logger"
	"github.com/deppfellow/countstore/internal/record"
	"github.com/rs/zerolog"
)

// RecordRepository reads and writes rows of the records table.
type RecordRepository struct {
	table  *core.Table
	logger *zerolog.Logger
}

func NewRecordRepository(table *core.Table, logger *zerolog.Logger) *RecordRepository {
	if logger == nil {
		logger = loggerPkg.Nop()
	}
	repoLogger := logger.With().Str("component", "repository").Str("table", table.Name()).Logger()
	return &RecordRepository{table: table, logger: &repoLogger}
}

// Table returns the records table.
func (r *RecordRepository) Table() *core.Table {
	return r.table
}

// Insert stores one row and returns the primary key the engine assigned.
func (r *RecordRepository) Insert(ctx context.Context, conn database.Conn, keywords string, count int64) (int64, error) {
	stmt := r.table.Insert(core.Values{
		record.ColumnKeywords: keywords,
		record.ColumnCount:    count,
	})

	res, err := core.Execute(ctx, conn, stmt)
	if err != nil {
		return 0, err
	}

	id := res.InsertedPrimaryKey()
	r.logger.Debug().Int64("id", id).Str("keywords", keywords).Msg("row inserted")
	return id, nil
}

// All returns every row, ordered by id.
func (r *RecordRepository) All(ctx context.Context, conn database.Conn) ([]core.Row, error) {
	return r.selectRows(ctx, conn, r.table.Select())
}

// ByID returns the rows whose id equals id (zero or one row).
func (r *RecordRepository) ByID(ctx context.Context, conn database.Conn, id int64) ([]core.Row, error) {
	return r.selectRows(ctx, conn, r.table.Select(core.Eq(record.ColumnID, id)))
}

// ByPrefix returns the rows whose keywords start with prefix.
func (r *RecordRepository) ByPrefix(ctx context.Context, conn database.Conn, prefix string) ([]core.Row, error) {
	return r.selectRows(ctx, conn, r.table.Select(core.HasPrefix(record.ColumnKeywords, prefix)))
}

func (r *RecordRepository) selectRows(ctx context.Context, conn database.Conn, stmt *core.SelectStatement) ([]core.Row, error) {
	res, err := core.Execute(ctx, conn, stmt)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return res.All()
}
