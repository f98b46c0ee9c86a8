package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/enum"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/filter"
	"github.com/Ramsey-B/thistle/pkg/format"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/pagination"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/Ramsey-B/thistle/pkg/sorting"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// ReadOperation is one entity read with its active plugins. A nil shape or
// paginator means the plugin is disabled and its arguments are rejected.
type ReadOperation struct {
	Entity string
	Name   string

	entity        *entitygraph.Entity
	filter        *filter.Shape
	sort          *sorting.Shape
	paginator     *pagination.Paginator
	formatEnabled bool
	formatted     map[string]*enum.Enumeration
	formats       *format.Registry
	store         query.DataStore
	logger        ectologger.Logger
}

// Request is a read request. Args holds the raw request arguments handed to
// custom filter resolvers.
type Request struct {
	Filter map[string]any            `json:"filter,omitempty"`
	Sort   any                       `json:"sort,omitempty"`
	Limit  *int                      `json:"limit,omitempty"`
	Offset *int                      `json:"offset,omitempty"`
	Format map[string]format.Request `json:"format,omitempty"`
	Args   capability.Arguments      `json:"-"`
}

// Result is a page of nodes. Edges and PageInfo are only set when pagination is
// enabled.
type Result struct {
	Nodes    []query.Row           `json:"nodes"`
	Edges    []pagination.Edge     `json:"edges,omitempty"`
	PageInfo *pagination.PageInfo `json:"pageInfo,omitempty"`
}

// Plugins lists the active plugins of the operation in argument order.
func (op *ReadOperation) Plugins() []string {
	active := ectolinq.Filter(capability.All, func(p capability.Plugin) bool {
		switch p {
		case capability.PluginFilter:
			return op.filter != nil
		case capability.PluginSort:
			return op.sort != nil
		case capability.PluginFormat:
			return op.formatEnabled
		case capability.PluginPagination:
			return op.paginator != nil
		}
		return false
	})
	return ectolinq.Map(active, func(p capability.Plugin) string {
		return string(p)
	})
}

// Enumeration returns the format enumeration of a field, if the field can be
// formatted by this operation.
func (op *ReadOperation) Enumeration(field string) (*enum.Enumeration, bool) {
	e, ok := op.formatted[field]
	return e, ok
}

// Execute validates every argument of req, then runs the read. Nothing reaches
// the data store unless the whole request is valid.
func (op *ReadOperation) Execute(ctx context.Context, req Request) (result *Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Execute",
		attribute.String("entity", op.Entity),
		attribute.String("operation", op.Name),
	)
	start := time.Now()
	defer func() {
		op.record(err, start)
		tracing.EndSpan(span, err)
	}()

	if err := op.checkArguments(req); err != nil {
		return nil, err
	}

	q := query.New(op.Entity)

	if op.filter != nil && len(req.Filter) > 0 {
		q, err = op.filter.Apply(q, req.Filter, req.Args)
		if err != nil {
			return nil, err
		}
	}

	if op.sort != nil && req.Sort != nil {
		terms, err := sorting.ParseTerms(req.Sort)
		if err != nil {
			if capErr, ok := caperrors.As(err); ok && capErr.Entity == "" {
				capErr.AddEntity(op.Entity)
			}
			return nil, err
		}
		keys, err := op.sort.Compile(terms)
		if err != nil {
			return nil, err
		}
		q.Sort = keys
	}

	var plan format.Plan
	if len(req.Format) > 0 {
		plan, err = format.Compile(op.entity, req.Format, op.formats, func(field string) bool {
			_, ok := op.formatted[field]
			return ok
		})
		if err != nil {
			return nil, err
		}
	}

	log := op.logger.WithContext(ctx).WithFields(map[string]any{
		"entity":    op.Entity,
		"operation": op.Name,
		"sortKeys":  len(q.Sort),
		"leaves":    len(q.Where.Leaves()),
	})

	if op.paginator == nil {
		rows, err := op.store.Fetch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s rows: %w", op.Entity, err)
		}
		result = &Result{Nodes: make([]query.Row, 0, len(rows))}
		for _, row := range rows {
			formatted, err := plan.Apply(row)
			if err != nil {
				return nil, err
			}
			result.Nodes = append(result.Nodes, formatted)
		}
		metrics.RecordPage(op.Entity, len(result.Nodes))
		log.WithFields(map[string]any{"returned": len(result.Nodes)}).Debug("executed read")
		return result, nil
	}

	page := pagination.PageRequest{Limit: req.Limit}
	if req.Offset != nil {
		page.Offset = *req.Offset
	}

	conn, err := op.paginator.Paginate(ctx, q, page)
	if err != nil {
		return nil, err
	}
	if err := conn.MapNodes(plan.Apply); err != nil {
		return nil, err
	}

	metrics.RecordPage(op.Entity, len(conn.Nodes))
	log.WithFields(map[string]any{
		"returned": len(conn.Nodes),
		"total":    conn.PageInfo.TotalCount,
	}).Debug("executed read")

	return &Result{
		Nodes:    conn.Nodes,
		Edges:    conn.Edges,
		PageInfo: &conn.PageInfo,
	}, nil
}

// checkArguments rejects arguments of disabled plugins.
func (op *ReadOperation) checkArguments(req Request) error {
	unsupported := func(argument string) error {
		return caperrors.Newf(caperrors.CodeUnsupportedArgument, "argument '%s' is not available on %s.%s", argument, op.Entity, op.Name).
			AddEntity(op.Entity).AddPath(argument)
	}

	if op.filter == nil && req.Filter != nil {
		return unsupported("filter")
	}
	if op.sort == nil && req.Sort != nil {
		return unsupported("sort")
	}
	if !op.formatEnabled && req.Format != nil {
		return unsupported("format")
	}
	if op.paginator == nil {
		if req.Limit != nil {
			return unsupported("limit")
		}
		if req.Offset != nil {
			return unsupported("offset")
		}
	}
	return nil
}

func (op *ReadOperation) record(err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
		if capErr, ok := caperrors.As(err); ok {
			status = "rejected"
			metrics.RecordRejection(string(capErr.Code))
		}
	}
	metrics.RecordReadRequest(op.Entity, op.Name, status, time.Since(start).Seconds())
}
