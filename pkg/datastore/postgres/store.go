// Package postgres is a data store over PostgreSQL tables described by the
// entity graph's storage mapping.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

type Store struct {
	db     database.DB
	graph  *entitygraph.Graph
	logger ectologger.Logger
}

func NewStore(db database.DB, graph *entitygraph.Graph, logger ectologger.Logger) *Store {
	return &Store{
		db:     db,
		graph:  graph,
		logger: logger,
	}
}

func (s *Store) Count(ctx context.Context, q query.Query) (count int, err error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Count", attribute.String("entity", q.Entity))
	start := time.Now()
	defer func() {
		recordCall("count", err, start)
		tracing.EndSpan(span, err)
	}()

	sql, args, err := newCompiler(s.graph).Count(q)
	if err != nil {
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity": q.Entity,
		"sql":    sql,
	}).Debug("counting rows")

	if err := s.db.GetContext(ctx, &count, sql, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Entity, err)
	}
	return count, nil
}

func (s *Store) Fetch(ctx context.Context, q query.Query) (rows []query.Row, err error) {
	ctx, span := tracing.StartSpan(ctx, "postgres.Fetch", attribute.String("entity", q.Entity))
	start := time.Now()
	defer func() {
		recordCall("fetch", err, start)
		tracing.EndSpan(span, err)
	}()

	sql, args, err := newCompiler(s.graph).Fetch(q)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity": q.Entity,
		"sql":    sql,
	}).Debug("fetching rows")

	result, err := s.db.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", q.Entity, err)
	}
	defer result.Close()

	rows = []query.Row{}
	for result.Next() {
		row := map[string]any{}
		if err := result.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Entity, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", q.Entity, err)
	}
	return rows, nil
}

func recordCall(call string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDataStoreCall("postgres", call, status, time.Since(start).Seconds())
}
