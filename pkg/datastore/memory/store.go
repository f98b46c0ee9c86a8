// Package memory is a data store over rows held in process. Related rows are
// nested under their relation name, as criteria expects.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/criteria"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

type Store struct {
	logger ectologger.Logger

	mu   sync.RWMutex
	rows map[string][]query.Row
}

func NewStore(logger ectologger.Logger) *Store {
	return &Store{
		logger: logger,
		rows:   map[string][]query.Row{},
	}
}

// Load replaces the rows of entity.
func (s *Store) Load(entity string, rows []query.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[entity] = append([]query.Row(nil), rows...)
}

func (s *Store) Insert(entity string, rows ...query.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[entity] = append(s.rows[entity], rows...)
}

func (s *Store) Count(ctx context.Context, q query.Query) (count int, err error) {
	_, span := tracing.StartSpan(ctx, "memory.Count", attribute.String("entity", q.Entity))
	start := time.Now()
	defer func() {
		recordCall("count", err, start)
		tracing.EndSpan(span, err)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(criteria.Filter(s.rows[q.Entity], q.Where)), nil
}

// Fetch returns copies of the matching rows so callers may rewrite field values.
func (s *Store) Fetch(ctx context.Context, q query.Query) (rows []query.Row, err error) {
	_, span := tracing.StartSpan(ctx, "memory.Fetch", attribute.String("entity", q.Entity))
	start := time.Now()
	defer func() {
		recordCall("fetch", err, start)
		tracing.EndSpan(span, err)
	}()

	s.mu.RLock()
	matched := criteria.Filter(s.rows[q.Entity], q.Where)
	s.mu.RUnlock()

	criteria.Sort(matched, q.Sort)
	matched = applyWindow(matched, q.Window)

	out := make([]query.Row, 0, len(matched))
	for _, row := range matched {
		copied := make(query.Row, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out = append(out, copied)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity":   q.Entity,
		"returned": len(out),
	}).Debug("fetched rows from memory")
	return out, nil
}

func applyWindow(rows []query.Row, w *query.Window) []query.Row {
	if w == nil {
		return rows
	}
	if w.Offset >= len(rows) {
		return []query.Row{}
	}
	rows = rows[w.Offset:]
	if w.Limit != nil && *w.Limit < len(rows) {
		rows = rows[:*w.Limit]
	}
	return rows
}

func recordCall(call string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDataStoreCall("memory", call, status, time.Since(start).Seconds())
}
