// Package graph is a data store over a property graph reachable through the bolt
// protocol (Neo4j or Memgraph). Entities are node labels and relations are edges.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Reader runs a read-only cypher statement.
type Reader interface {
	ReadRecords(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

type Store struct {
	reader Reader
	graph  *entitygraph.Graph
	logger ectologger.Logger
}

func NewStore(reader Reader, graph *entitygraph.Graph, logger ectologger.Logger) *Store {
	return &Store{
		reader: reader,
		graph:  graph,
		logger: logger,
	}
}

func (s *Store) Count(ctx context.Context, q query.Query) (count int, err error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Count", attribute.String("entity", q.Entity))
	start := time.Now()
	defer func() {
		recordCall("count", err, start)
		tracing.EndSpan(span, err)
	}()

	cypher, params, err := newCompiler(s.graph).Count(q)
	if err != nil {
		return 0, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity": q.Entity,
		"cypher": cypher,
	}).Debug("counting nodes")

	records, err := s.reader.ReadRecords(ctx, cypher, params)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Entity, err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	switch total := records[0]["total"].(type) {
	case int64:
		return int(total), nil
	case int:
		return total, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T for %s", total, q.Entity)
	}
}

func (s *Store) Fetch(ctx context.Context, q query.Query) (rows []query.Row, err error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Fetch", attribute.String("entity", q.Entity))
	start := time.Now()
	defer func() {
		recordCall("fetch", err, start)
		tracing.EndSpan(span, err)
	}()

	cypher, params, err := newCompiler(s.graph).Fetch(q)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity": q.Entity,
		"cypher": cypher,
	}).Debug("fetching nodes")

	records, err := s.reader.ReadRecords(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", q.Entity, err)
	}

	rows = make([]query.Row, 0, len(records))
	for _, record := range records {
		props, ok := record["row"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T for %s", record["row"], q.Entity)
		}
		row := make(query.Row, len(props))
		for k, v := range props {
			row[k] = normalize(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// timeValue covers the driver's temporal types (Date, LocalDateTime, LocalTime).
type timeValue interface {
	Time() time.Time
}

func normalize(v any) any {
	if t, ok := v.(timeValue); ok {
		return t.Time()
	}
	return v
}

func recordCall(call string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordDataStoreCall("graph", call, status, time.Since(start).Seconds())
}
