package orm

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/deppfellow/countstore/internal/core"
	"github.com/deppfellow/countstore/internal/database"
	"github.com/deppfellow/countstore/internal/errs"
	"github.com/deppfellow/countstore/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of a mapped object relative to a session.
type State int

const (
	// Transient objects are not tracked by the session and have no id.
	Transient State = iota
	// Pending objects were added and wait for Commit.
	Pending
	// Persistent objects are stored and carry their assigned id.
	Persistent
)

func (s State) String() string {
	switch s {
	case Transient:
		return "transient"
	case Pending:
		return "pending"
	case Persistent:
		return "persistent"
	default:
		return "unknown"
	}
}

type pendingObject struct {
	obj    any
	mapper entityMapper
}

// Session is a unit of work bound to one pinned connection.
//
// It is not safe for concurrent use. The opener must Close it.
type Session struct {
	id       string
	conn     *database.Connection
	registry *Registry
	log      zerolog.Logger

	pending []pendingObject
	tracked map[any]struct{}
	closed  bool
}

// Open binds a new session to a connection from engine.
func Open(ctx context.Context, engine *database.Engine, registry *Registry, logger *zerolog.Logger) (*Session, error) {
	conn, err := engine.Connect(ctx)
	if err != nil {
		return nil, sqlerr.HandleError(err)
	}

	id := uuid.NewString()
	if logger == nil {
		logger = engine.Logger()
	}

	return &Session{
		id:       id,
		conn:     conn,
		registry: registry,
		log:      logger.With().Str("component", "orm").Str("session_id", id).Logger(),
		tracked:  make(map[any]struct{}),
	}, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Pending returns how many objects wait for Commit.
func (s *Session) Pending() int { return len(s.pending) }

// State reports obj's lifecycle state as seen by this session.
func (s *Session) State(obj any) State {
	m, err := s.registry.lookup(obj)
	if err != nil {
		return Transient
	}
	if _, ok := s.tracked[obj]; ok {
		return Pending
	}
	if m.id(obj) != 0 {
		return Persistent
	}
	return Transient
}

// Add moves a Transient object to Pending. Adding the same pointer twice
// queues it once.
//
// Errors: *errs.StateError if the session is closed or obj is already
// Persistent, *errs.SchemaError if obj's type is not mapped.
func (s *Session) Add(obj any) error {
	m, err := s.check(obj)
	if err != nil {
		return err
	}
	s.track(obj, m)
	return nil
}

// AddAll adds objs in order. Every object is checked first, so either all
// of them become Pending or none does.
func (s *Session) AddAll(objs ...any) error {
	mappers := make([]entityMapper, len(objs))
	for i, obj := range objs {
		m, err := s.check(obj)
		if err != nil {
			return err
		}
		mappers[i] = m
	}
	for i, obj := range objs {
		s.track(obj, mappers[i])
	}
	return nil
}

func (s *Session) check(obj any) (entityMapper, error) {
	if s.closed {
		return nil, errs.NewStateError("closed", "session is closed")
	}
	m, err := s.registry.lookup(obj)
	if err != nil {
		return nil, err
	}
	if _, ok := s.tracked[obj]; ok {
		return m, nil
	}
	if m.id(obj) != 0 {
		return nil, errs.NewStateError(Persistent.String(), "object is already persistent")
	}
	return m, nil
}

func (s *Session) track(obj any, m entityMapper) {
	if _, ok := s.tracked[obj]; ok {
		return
	}
	s.tracked[obj] = struct{}{}
	s.pending = append(s.pending, pendingObject{obj: obj, mapper: m})
}

// Commit flushes every Pending object in one transaction, in the order they
// were added.
//
// On success each object is loaded with its stored row (assigned id,
// applied defaults) and becomes Persistent. On failure the transaction is
// rolled back, no object is modified, the batch stays Pending, and the
// returned *errs.CommitError wraps the execution failure.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return errs.NewStateError("closed", "session is closed")
	}
	if len(s.pending) == 0 {
		return nil
	}

	batch := len(s.pending)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return errs.NewCommitError(batch, sqlerr.HandleContextError(ctx, err))
	}

	rows := make([]core.Row, 0, batch)
	for _, p := range s.pending {
		stmt := p.mapper.table().Insert(p.mapper.values(p.obj))
		res, err := core.Execute(ctx, tx, stmt)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Error().Err(rbErr).Msg("rollback failed")
			}
			s.log.Warn().Err(err).Int("pending", batch).Msg("commit failed, batch rolled back")
			return errs.NewCommitError(batch, err)
		}
		row, _ := res.Row()
		rows = append(rows, row)
	}

	if err := tx.Commit(); err != nil {
		err = sqlerr.HandleContextError(ctx, err)
		s.log.Warn().Err(err).Int("pending", batch).Msg("commit failed, batch rolled back")
		return errs.NewCommitError(batch, err)
	}

	for i, p := range s.pending {
		p.mapper.load(p.obj, rows[i])
	}

	s.pending = nil
	s.tracked = make(map[any]struct{})

	s.log.Debug().Int("flushed", batch).Msg("session committed")
	return nil
}

// Close releases the session's connection. Pending objects are discarded.
// Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if n := len(s.pending); n > 0 {
		s.log.Warn().Int("pending", n).Msg("closing session with uncommitted objects")
	}
	s.pending = nil
	s.tracked = nil
	return s.conn.Close()
}

// Query lazily loads Persistent objects of type T matching every predicate,
// ordered by primary key. Pending objects are not flushed first.
func Query[T any](ctx context.Context, s *Session, predicates ...core.Predicate) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		if s.closed {
			yield(nil, errs.NewStateError("closed", "session is closed"))
			return
		}

		m, err := MappingFor[T](s.registry)
		if err != nil {
			yield(nil, err)
			return
		}

		res, err := core.Execute(ctx, s.conn, m.Table.Select(predicates...))
		if err != nil {
			yield(nil, err)
			return
		}
		defer res.Close()

		for row, err := range res.Rows() {
			if err != nil {
				yield(nil, err)
				return
			}
			obj := new(T)
			m.Load(obj, row)
			if !yield(obj, nil) {
				return
			}
		}
	}
}

// All drains Query into a slice.
func All[T any](ctx context.Context, s *Session, predicates ...core.Predicate) ([]*T, error) {
	var out []*T
	for obj, err := range Query[T](ctx, s, predicates...) {
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}
