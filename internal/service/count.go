package service

import (
	"context"
	"fmt"

	"github.com/deppfellow/countstore/internal/database"
	loggerPkg "github.com/deppfellow/countstore/internal/logger"
	"github.com/deppfellow/countstore/internal/record"
	"github.com/deppfellow/countstore/internal/repository"
	"github.com/deppfellow/countstore/internal/search"
	"github.com/rs/zerolog"
)

// CountService fetches sentence counts and stores them as labeled records.
type CountService struct {
	counter search.Counter
	records *repository.RecordRepository
	logger  *zerolog.Logger
}

func NewCountService(counter search.Counter, records *repository.RecordRepository, logger *zerolog.Logger) *CountService {
	if logger == nil {
		logger = loggerPkg.Nop()
	}
	serviceLogger := logger.With().Str("component", "count_service").Logger()
	return &CountService{
		counter: counter,
		records: records,
		logger:  &serviceLogger,
	}
}

// Count asks the search service how many sentences match query.
func (s *CountService) Count(ctx context.Context, query string, filters ...search.Filter) (int64, error) {
	n, err := s.counter.Count(ctx, query, filters...)
	if err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", query, err)
	}
	return n, nil
}

// CountAndStore counts query and inserts the result on conn under label.
// Nothing is stored when the count fails.
func (s *CountService) CountAndStore(ctx context.Context, conn database.Conn, label, query string, filters ...search.Filter) (record.Record, error) {
	n, err := s.Count(ctx, query, filters...)
	if err != nil {
		return record.Record{}, err
	}

	id, err := s.records.Insert(ctx, conn, label, n)
	if err != nil {
		return record.Record{}, fmt.Errorf("failed to store count for %q: %w", label, err)
	}

	s.logger.Info().
		Int64("id", id).
		Str("keywords", label).
		Int64("count", n).
		Msg("count stored")

	return record.Record{ID: id, Keywords: label, Count: n}, nil
}
