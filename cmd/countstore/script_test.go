package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deppfellow/countstore/internal/app"
	"github.com/deppfellow/countstore/internal/config"
	"github.com/deppfellow/countstore/internal/repository"
	"github.com/deppfellow/countstore/internal/search"
	"github.com/deppfellow/countstore/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter map[string]int64

func (s stubCounter) Count(ctx context.Context, query string, filters ...search.Filter) (int64, error) {
	return s[query], nil
}

func TestScript(t *testing.T) {
	t.Run("in-memory store", func(t *testing.T) {
		runScript(t, config.Default().Database.DSN)
	})

	t.Run("file store", func(t *testing.T) {
		runScript(t, "sqlite://"+filepath.Join(t.TempDir(), "countstore.db"))
	})
}

func runScript(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Search.APIKey = "key"
	cfg.Database.DSN = dsn

	a, err := app.New(ctx, cfg, nil, app.WithCounter(stubCounter{"( Trump)": 120, "( Clinton)": 80}))
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	repos, err := repository.NewRepositories(a)
	require.NoError(t, err)
	services, err := service.NewServices(a, repos)
	require.NoError(t, err)

	var out bytes.Buffer
	s := &script{app: a, repos: repos, services: services, out: &out}
	require.NoError(t, s.run(ctx))

	want := []string{
		"-- statement layer",
		`INSERT INTO "queries" ("keywords", "count") VALUES (?, ?) RETURNING "id", "keywords", "count"`,
		"( Trump): 120 sentences",
		"inserted primary key: 1",
		"( Clinton): 80 sentences",
		"inserted primary key: 2",
		"all rows:",
		`  (1, "Trump", 120)`,
		`  (2, "Hilary", 80)`,
		"id = 1:",
		`  (1, "Trump", 120)`,
		"keywords starting with p:",
		"-- session layer",
		`Record(id=0, keywords="Trump", count=120)`,
		"committed id: 1",
		"all records:",
		`  Record(id=1, keywords="Trump", count=120)`,
		"all records:",
		`  Record(id=1, keywords="Trump", count=120)`,
		`  Record(id=2, keywords="robot", count=0)`,
		`  Record(id=3, keywords="puppy", count=0)`,
		"keywords starting with r:",
		`  Record(id=2, keywords="robot", count=0)`,
	}

	assert.Equal(t, want, strings.Split(strings.TrimRight(out.String(), "\n"), "\n"))
}

func TestSeptember2016(t *testing.T) {
	filters := september2016()
	require.Len(t, filters, 2)
	assert.Equal(t, "publish_date:[2016-09-01T00:00:00Z TO 2016-09-30T00:00:00Z}", filters[0].String())
	assert.Equal(t, "tags_id_media:1", filters[1].String())
}
