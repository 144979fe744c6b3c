package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/satprep/internal/store"
)

// Sink accepts statistics records. It is write-only from the session's
// point of view.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// StoreSink appends records to the local statistics table.
type StoreSink struct {
	repo store.StatsRepo
}

// NewStoreSink creates a sink backed by repo.
func NewStoreSink(repo store.StatsRepo) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Append(ctx context.Context, rec Record) error {
	if err := s.repo.AppendStatistic(ctx, rec.toStore()); err != nil {
		return fmt.Errorf("append statistic: %w", err)
	}
	return nil
}

// MultiSink fans a record out to every sink. All sinks are attempted and
// their errors joined.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Append(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}
