package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/database"
	"github.com/deppfellow/countstore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queriesColumns() []core.Column {
	return []core.Column{
		{Name: "id", Type: core.Integer, PrimaryKey: true},
		{Name: "keywords", Type: core.String(400), NotNull: true},
		{Name: "count", Type: core.Integer, Default: 0},
	}
}

func setup(t *testing.T) (*database.Engine, *core.Table) {
	t.Helper()
	return setupWith(t, database.Options{})
}

func setupWith(t *testing.T, opts database.Options) (*database.Engine, *core.Table) {
	t.Helper()
	ctx := context.Background()

	engine, err := database.Open(ctx, ":memory:", opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	md := core.NewMetadata()
	tbl, err := md.DefineTable("queries", queriesColumns()...)
	require.NoError(t, err)
	require.NoError(t, md.CreateAll(ctx, engine))

	return engine, tbl
}

func countRows(t *testing.T, engine *database.Engine, table string) int {
	t.Helper()
	var n int
	require.NoError(t, engine.DB.QueryRow(`SELECT count(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func insert(t *testing.T, conn database.Conn, tbl *core.Table, values core.Values) int64 {
	t.Helper()
	res, err := core.Execute(context.Background(), conn, tbl.Insert(values))
	require.NoError(t, err)
	return res.InsertedPrimaryKey()
}

func TestDefineTable(t *testing.T) {
	t.Run("identical redefinition returns the same table", func(t *testing.T) {
		md := core.NewMetadata()
		first, err := md.DefineTable("queries", queriesColumns()...)
		require.NoError(t, err)

		second, err := md.DefineTable("queries", queriesColumns()...)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Len(t, md.Tables(), 1)
	})

	t.Run("conflicting redefinition", func(t *testing.T) {
		md := core.NewMetadata()
		_, err := md.DefineTable("queries", queriesColumns()...)
		require.NoError(t, err)

		_, err = md.DefineTable("queries", core.Column{Name: "id", Type: core.Integer, PrimaryKey: true})
		assert.True(t, errs.IsSchema(err))
	})

	tests := []struct {
		name    string
		table   string
		columns []core.Column
	}{
		{name: "bad table name", table: "que ries", columns: queriesColumns()},
		{name: "no columns", table: "queries"},
		{
			name:  "duplicate column",
			table: "queries",
			columns: []core.Column{
				{Name: "a", Type: core.Integer},
				{Name: "a", Type: core.Integer},
			},
		},
		{name: "missing type", table: "queries", columns: []core.Column{{Name: "a"}}},
		{
			name:  "two primary keys",
			table: "queries",
			columns: []core.Column{
				{Name: "a", Type: core.Integer, PrimaryKey: true},
				{Name: "b", Type: core.Integer, PrimaryKey: true},
			},
		},
		{
			name:    "string primary key",
			table:   "queries",
			columns: []core.Column{{Name: "a", Type: core.String(10), PrimaryKey: true}},
		},
		{
			name:    "default of the wrong type",
			table:   "queries",
			columns: []core.Column{{Name: "a", Type: core.String(10), Default: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.NewMetadata().DefineTable(tt.table, tt.columns...)
			var schemaErr *errs.SchemaError
			assert.True(t, errors.As(err, &schemaErr))
		})
	}
}

func TestMetadata_MustTable(t *testing.T) {
	md := core.NewMetadata()
	_, err := md.MustTable("queries")
	assert.True(t, errs.IsSchema(err))

	_, err = md.DefineTable("queries", queriesColumns()...)
	require.NoError(t, err)

	tbl, err := md.MustTable("queries")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "keywords", "count"}, tbl.ColumnNames())

	pk, ok := tbl.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)
	assert.True(t, pk.NotNull)
}

func TestCreateAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	engine, _ := setup(t)

	md := core.NewMetadata()
	_, err := md.DefineTable("queries", queriesColumns()...)
	require.NoError(t, err)
	require.NoError(t, md.CreateAll(ctx, engine))
	require.NoError(t, md.CreateAll(ctx, engine))

	var n int
	require.NoError(t, engine.DB.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'queries'`,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCreateTableSQL(t *testing.T) {
	md := core.NewMetadata()
	tbl, err := md.DefineTable("queries", queriesColumns()...)
	require.NoError(t, err)

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "queries" (`+
			`"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, `+
			`"keywords" VARCHAR(400) NOT NULL CONSTRAINT "queries_keywords_length" CHECK (length("keywords") <= 400), `+
			`"count" INTEGER DEFAULT 0)`,
		core.CreateTableSQL(tbl, database.SQLite))

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "queries" (`+
			`"id" BIGSERIAL PRIMARY KEY, `+
			`"keywords" VARCHAR(400) NOT NULL, `+
			`"count" BIGINT DEFAULT 0)`,
		core.CreateTableSQL(tbl, database.Postgres))
}

func TestStatementRendering(t *testing.T) {
	md := core.NewMetadata()
	tbl, err := md.DefineTable("queries", queriesColumns()...)
	require.NoError(t, err)

	t.Run("insert", func(t *testing.T) {
		stmt := tbl.Insert(core.Values{"keywords": "Trump", "count": 5})
		assert.Equal(t,
			`INSERT INTO "queries" ("keywords", "count") VALUES (?, ?) RETURNING "id", "keywords", "count"`,
			stmt.String())

		query, args, err := stmt.SQL(database.Postgres)
		require.NoError(t, err)
		assert.Equal(t,
			`INSERT INTO "queries" ("keywords", "count") VALUES ($1, $2) RETURNING "id", "keywords", "count"`,
			query)
		assert.Equal(t, []any{"Trump", 5}, args)
	})

	t.Run("insert without values", func(t *testing.T) {
		assert.Equal(t,
			`INSERT INTO "queries" DEFAULT VALUES RETURNING "id", "keywords", "count"`,
			tbl.Insert(nil).String())
	})

	t.Run("values merges", func(t *testing.T) {
		base := tbl.Insert(core.Values{"keywords": "Trump"})
		merged := base.Values(core.Values{"count": 3})

		_, args, err := merged.SQL(database.SQLite)
		require.NoError(t, err)
		assert.Equal(t, []any{"Trump", 3}, args)

		_, args, err = base.SQL(database.SQLite)
		require.NoError(t, err)
		assert.Equal(t, []any{"Trump"}, args)
	})

	t.Run("select", func(t *testing.T) {
		assert.Equal(t,
			`SELECT "id", "keywords", "count" FROM "queries" ORDER BY "id"`,
			tbl.Select().String())

		stmt := tbl.Select(core.Eq("id", 1)).Where(core.HasPrefix("keywords", "p_"))
		query, args, err := stmt.SQL(database.Postgres)
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT "id", "keywords", "count" FROM "queries" WHERE "id" = $1 AND "keywords" LIKE $2 ESCAPE '\' ORDER BY "id"`,
			query)
		assert.Equal(t, []any{1, `p\_%`}, args)
		assert.Len(t, stmt.Predicates(), 2)
	})

	t.Run("eq nil", func(t *testing.T) {
		assert.Equal(t,
			`SELECT "id", "keywords", "count" FROM "queries" WHERE "keywords" IS NULL ORDER BY "id"`,
			tbl.Select(core.Eq("keywords", nil)).String())
	})

	t.Run("invalid statements", func(t *testing.T) {
		_, _, err := tbl.Insert(core.Values{"nope": 1}).SQL(database.SQLite)
		assert.True(t, errs.IsExecution(err))

		_, _, err = tbl.Select(core.HasPrefix("count", "1")).SQL(database.SQLite)
		assert.True(t, errs.IsExecution(err))

		assert.True(t, strings.HasPrefix(tbl.Select(core.Eq("nope", 1)).String(), "<invalid statement"))
	})
}

func TestInsertSelect_RoundTrip(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	conn, err := engine.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	id := insert(t, conn, tbl, core.Values{"keywords": "Trump", "count": 5})
	assert.NotZero(t, id)

	res, err := core.Execute(ctx, conn, tbl.Select(core.Eq("id", id)))
	require.NoError(t, err)
	rows, err := res.All()
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, []any{id, "Trump", int64(5)}, rows[0].Values())
	assert.Equal(t, `(1, "Trump", 5)`, rows[0].String())

	keywords, ok := rows[0].Text("keywords")
	assert.True(t, ok)
	assert.Equal(t, "Trump", keywords)
}

func TestInsert_AssignsUniqueIDs(t *testing.T) {
	engine, tbl := setup(t)

	seen := map[int64]bool{}
	for _, kw := range []string{"a", "b", "c", "d"} {
		id := insert(t, engine, tbl, core.Values{"keywords": kw})
		assert.NotZero(t, id)
		assert.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
}

func TestInsert_DefaultCount(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	res, err := core.Execute(ctx, engine, tbl.Insert(core.Values{"keywords": "robot"}))
	require.NoError(t, err)

	row, ok := res.Row()
	require.True(t, ok)
	count, ok := row.Int64("count")
	assert.True(t, ok)
	assert.Equal(t, int64(0), count)
}

func TestInsert_NullKeywords(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	insert(t, engine, tbl, core.Values{"keywords": "Trump", "count": 5})
	before := countRows(t, engine, "queries")

	for name, values := range map[string]core.Values{
		"explicit nil": {"keywords": nil, "count": 1},
		"left out":     {"count": 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := core.Execute(ctx, engine, tbl.Insert(values))

			var execErr *errs.ExecutionError
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, "QUERY_REQUIRED", execErr.Code)
			assert.Equal(t, "keywords", execErr.Column)
			assert.Equal(t, before, countRows(t, engine, "queries"))
		})
	}
}

func TestInsert_KeywordsTooLong(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	_, err := core.Execute(ctx, engine, tbl.Insert(core.Values{"keywords": strings.Repeat("x", 401)}))

	var execErr *errs.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "QUERY_INVALID", execErr.Code)
	assert.Equal(t, 0, countRows(t, engine, "queries"))

	insert(t, engine, tbl, core.Values{"keywords": strings.Repeat("x", 400)})
	assert.Equal(t, 1, countRows(t, engine, "queries"))
}

func TestInsert_UnknownColumn(t *testing.T) {
	engine, tbl := setup(t)

	_, err := core.Execute(context.Background(), engine, tbl.Insert(core.Values{"keywords": "x", "nope": 1}))

	var execErr *errs.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "UNKNOWN_COLUMN", execErr.Code)
	assert.Equal(t, "nope", execErr.Column)
}

func TestSelect_Prefix(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	for _, kw := range []string{"puppy", "robot", "park", "50% off", "50 cents"} {
		insert(t, engine, tbl, core.Values{"keywords": kw})
	}

	keywords := func(prefix string) []string {
		res, err := core.Execute(ctx, engine, tbl.Select(core.HasPrefix("keywords", prefix)))
		require.NoError(t, err)
		var out []string
		for row, err := range res.Rows() {
			require.NoError(t, err)
			kw, _ := row.Text("keywords")
			out = append(out, kw)
		}
		return out
	}

	assert.Equal(t, []string{"puppy", "park"}, keywords("p"))
	assert.Equal(t, []string{"robot"}, keywords("r"))
	assert.Equal(t, []string{"50% off"}, keywords("50%"))
	assert.Empty(t, keywords("z"))
}

func TestResult_RowsBreakReleasesCursor(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	conn, err := engine.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	for _, kw := range []string{"a", "b", "c"} {
		insert(t, conn, tbl, core.Values{"keywords": kw})
	}

	res, err := core.Execute(ctx, conn, tbl.Select())
	require.NoError(t, err)
	for _, err := range res.Rows() {
		require.NoError(t, err)
		break
	}

	// The pinned connection is usable again once the loop broke.
	insert(t, conn, tbl, core.Values{"keywords": "d"})

	// A result is consumed once.
	rows, err := res.All()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExecute_ClosedConnection(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setup(t)

	conn, err := engine.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err = core.Execute(ctx, conn, tbl.Insert(core.Values{"keywords": "x"}))

	var execErr *errs.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "CONNECTION_CLOSED", execErr.Code)
	assert.Equal(t, 0, countRows(t, engine, "queries"))

	_, err = core.Execute(ctx, nil, tbl.Select())
	assert.True(t, errs.IsExecution(err))
}

func TestEnginesAreIsolated(t *testing.T) {
	first, tbl := setup(t)
	second, _ := setup(t)

	insert(t, first, tbl, core.Values{"keywords": "only here"})

	assert.Equal(t, 1, countRows(t, first, "queries"))
	assert.Equal(t, 0, countRows(t, second, "queries"))
}

func TestInsert_WhileRowsAreOpen(t *testing.T) {
	ctx := context.Background()
	engine, tbl := setupWith(t, database.Options{BusyTimeout: 50 * time.Millisecond})

	insert(t, engine, tbl, core.Values{"keywords": "Trump"})
	insert(t, engine, tbl, core.Values{"keywords": "Hilary"})

	res, err := core.Execute(ctx, engine, tbl.Select())
	require.NoError(t, err)

	seen := 0
	for _, err := range res.Rows() {
		require.NoError(t, err)
		seen++

		_, err = core.Execute(ctx, engine, tbl.Insert(core.Values{"keywords": "robot"}))

		var execErr *errs.ExecutionError
		require.True(t, errors.As(err, &execErr), "got %v", err)
		assert.Equal(t, "DATABASE_BUSY", execErr.Code)
	}
	assert.Equal(t, 2, seen)
	assert.Equal(t, 2, countRows(t, engine, "queries"))

	insert(t, engine, tbl, core.Values{"keywords": "robot"})
	assert.Equal(t, 3, countRows(t, engine, "queries"))
}

func TestExecute_ExpiredContext(t *testing.T) {
	engine, tbl := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := core.Execute(ctx, engine, tbl.Insert(core.Values{"keywords": "late"}))

	var execErr *errs.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "CANCELED", execErr.Code)
	assert.Equal(t, 0, countRows(t, engine, "queries"))
}
