package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/deppfellow/countstore/internal/app"
	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/orm"
	"github.com/deppfellow/countstore/internal/record"
	"github.com/deppfellow/countstore/internal/repository"
	"github.com/deppfellow/countstore/internal/search"
	"github.com/deppfellow/countstore/internal/service"
)

// Counted queries: the label stored and the search query behind it.
var counted = []struct {
	label string
	query string
}{
	{label: "Trump", query: "( Trump)"},
	{label: "Hilary", query: "( Clinton)"},
}

// september2016 restricts counts to September 2016 in the top US media set.
func september2016() []search.Filter {
	return []search.Filter{
		search.PublishDateRange(
			search.Date(2016, time.September, 1),
			search.Date(2016, time.September, 30),
		),
		search.Tag("tags_id_media", 1),
	}
}

type script struct {
	app      *app.App
	repos    *repository.Repositories
	services *service.Services
	out      io.Writer
}

func (s *script) run(ctx context.Context) error {
	stored, err := s.runStatements(ctx)
	if err != nil {
		return err
	}

	return s.runSession(ctx, stored[0].Count)
}

// runStatements counts each query, stores it with explicit insert
// statements and reads the rows back with selects.
func (s *script) runStatements(ctx context.Context) ([]record.Record, error) {
	records := s.repos.Records

	s.printf("-- statement layer\n")
	s.printf("%s\n", records.Table().Insert(core.Values{
		record.ColumnKeywords: "",
		record.ColumnCount:    0,
	}))

	conn, err := s.app.Engine.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	filters := september2016()
	stored := make([]record.Record, 0, len(counted))

	for _, c := range counted {
		rec, err := s.services.Count.CountAndStore(ctx, conn, c.label, c.query, filters...)
		if err != nil {
			return nil, err
		}
		s.printf("%s: %d sentences\n", c.query, rec.Count)
		s.printf("inserted primary key: %d\n", rec.ID)
		stored = append(stored, rec)
	}

	all, err := records.All(ctx, conn)
	if err != nil {
		return nil, err
	}
	s.printRows("all rows", all)

	byID, err := records.ByID(ctx, conn, 1)
	if err != nil {
		return nil, err
	}
	s.printRows("id = 1", byID)

	byPrefix, err := records.ByPrefix(ctx, conn, "p")
	if err != nil {
		return nil, err
	}
	s.printRows("keywords starting with p", byPrefix)

	return stored, nil
}

// runSession repeats the flow with mapped records on a private in-memory engine.
func (s *script) runSession(ctx context.Context, trumpCount int64) error {
	s.printf("-- session layer\n")

	engine, err := s.app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	sess, err := orm.Open(ctx, engine, s.app.Registry, s.app.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	trump := &record.Record{Keywords: "Trump", Count: trumpCount}
	s.printf("%s\n", trump)

	if err := sess.Add(trump); err != nil {
		return err
	}
	if err := sess.Commit(ctx); err != nil {
		return err
	}
	s.printf("committed id: %d\n", trump.ID)

	if err := s.printRecords(ctx, sess, "all records"); err != nil {
		return err
	}

	robot := &record.Record{Keywords: "robot"}
	puppy := &record.Record{Keywords: "puppy"}
	if err := sess.AddAll(robot, puppy); err != nil {
		return err
	}
	if err := sess.Commit(ctx); err != nil {
		return err
	}

	if err := s.printRecords(ctx, sess, "all records"); err != nil {
		return err
	}

	return s.printRecords(ctx, sess, "keywords starting with r",
		core.HasPrefix(record.ColumnKeywords, "r"))
}

func (s *script) printRecords(ctx context.Context, sess *orm.Session, title string, predicates ...core.Predicate) error {
	s.printf("%s:\n", title)
	for rec, err := range orm.Query[record.Record](ctx, sess, predicates...) {
		if err != nil {
			return err
		}
		s.printf("  %s\n", rec)
	}
	return nil
}

func (s *script) printRows(title string, rows []core.Row) {
	s.printf("%s:\n", title)
	for _, row := range rows {
		s.printf("  %s\n", row)
	}
}

func (s *script) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
