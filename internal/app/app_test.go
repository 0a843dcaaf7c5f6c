package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deppfellow/countstore/internal/config"
	"github.com/deppfellow/countstore/internal/errs"
	"github.com/deppfellow/countstore/internal/record"
	"github.com/deppfellow/countstore/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter int64

func (f fixedCounter) Count(ctx context.Context, query string, filters ...search.Filter) (int64, error) {
	return int64(f), nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Search.APIKey = "key"
	return cfg
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, testConfig(), nil, WithCounter(fixedCounter(3)))
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	tbl, ok := a.Metadata.Table(record.TableName)
	require.True(t, ok)
	assert.Equal(t, record.TableName, tbl.Name())

	var n int
	require.NoError(t, a.Engine.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'queries'`).Scan(&n))
	assert.Equal(t, 1, n)

	assert.Nil(t, a.Redis)
	assert.Equal(t, fixedCounter(3), a.Search)
}

func TestNew_BuildsSearchClient(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, testConfig(), nil)
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	assert.IsType(t, &search.Client{}, a.Search)
}

func TestNew_InvalidSearchConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Search.APIKey = ""

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, &errs.ValidationError{})
}

func TestNew_BadDSN(t *testing.T) {
	cfg := testConfig()
	cfg.Database.DSN = "mysql://localhost/db"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_RedisUnavailable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Redis.Address = "127.0.0.1:1"

	a, err := New(ctx, cfg, nil, WithCounter(fixedCounter(1)))
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	assert.Nil(t, a.Redis)
	assert.Equal(t, fixedCounter(1), a.Search)
}

func TestOpenStore_IsIsolated(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, testConfig(), nil, WithCounter(fixedCounter(0)))
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	_, err = a.Engine.ExecContext(ctx, `INSERT INTO "queries" ("keywords") VALUES ('Trump')`)
	require.NoError(t, err)

	store, err := a.OpenStore(ctx)
	require.NoError(t, err)
	defer store.Close()

	var n int
	require.NoError(t, store.DB.QueryRowContext(ctx, `SELECT count(*) FROM "queries"`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpenStore_IgnoresConfiguredDSN(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Database.DSN = "sqlite://" + filepath.Join(t.TempDir(), "countstore.db")

	a, err := New(ctx, cfg, nil, WithCounter(fixedCounter(0)))
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	_, err = a.Engine.ExecContext(ctx, `INSERT INTO "queries" ("keywords") VALUES ('Trump')`)
	require.NoError(t, err)

	store, err := a.OpenStore(ctx)
	require.NoError(t, err)
	defer store.Close()

	var n int
	require.NoError(t, store.DB.QueryRowContext(ctx, `SELECT count(*) FROM "queries"`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, a.Engine.DB.QueryRowContext(ctx, `SELECT count(*) FROM "queries"`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, testConfig(), nil, WithCounter(fixedCounter(0)))
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(ctx))
	assert.Error(t, a.Engine.Ping(ctx))
}
