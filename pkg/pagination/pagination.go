// Package pagination windows a compiled query by limit and offset and wraps the
// result in a connection with page metadata.
package pagination

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

type PageRequest struct {
	Limit  *int `json:"limit,omitempty" validate:"omitempty,min=0"`
	Offset int  `json:"offset" validate:"min=0"`
}

type PageInfo struct {
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	TotalCount      int  `json:"totalCount"`
}

type Edge struct {
	Node query.Row `json:"node"`
}

// Connection holds one page of results. Nodes and Edges always wrap the same
// rows in the same order.
type Connection struct {
	Nodes    []query.Row `json:"nodes"`
	Edges    []Edge      `json:"edges"`
	PageInfo PageInfo    `json:"pageInfo"`
}

// NewConnection assembles a page fetched at offset from a result of total rows.
func NewConnection(rows []query.Row, total, offset int) *Connection {
	conn := &Connection{
		Nodes: make([]query.Row, 0, len(rows)),
		Edges: make([]Edge, 0, len(rows)),
		PageInfo: PageInfo{
			HasNextPage:     offset+len(rows) < total,
			HasPreviousPage: offset > 0,
			TotalCount:      total,
		},
	}
	for _, row := range rows {
		conn.Nodes = append(conn.Nodes, row)
		conn.Edges = append(conn.Edges, Edge{Node: row})
	}
	return conn
}

// MapNodes replaces every node with fn's result, keeping edges in step.
func (c *Connection) MapNodes(fn func(query.Row) (query.Row, error)) error {
	for i, row := range c.Nodes {
		mapped, err := fn(row)
		if err != nil {
			return err
		}
		c.Nodes[i] = mapped
		c.Edges[i] = Edge{Node: mapped}
	}
	return nil
}

type Paginator struct {
	store        query.DataStore
	logger       ectologger.Logger
	maximumLimit int
	defaultLimit int
}

func NewPaginator(store query.DataStore, config capability.PluginConfig, logger ectologger.Logger) *Paginator {
	return &Paginator{
		store:        store,
		logger:       logger,
		maximumLimit: config.MaximumLimit,
		defaultLimit: config.DefaultLimit,
	}
}

func (p *Paginator) MaximumLimit() int {
	return p.maximumLimit
}

func (p *Paginator) DefaultLimit() int {
	return p.defaultLimit
}

// Window resolves the effective row window of a request. An omitted limit takes
// the default limit, or the maximum when no default is set. A requested limit
// above the maximum fails with LimitExceeded; it is never clamped.
func (p *Paginator) Window(req PageRequest) (query.Window, error) {
	if err := validate.Struct(req); err != nil {
		return query.Window{}, caperrors.New(caperrors.CodeInvalidPageRequest, "limit and offset must not be negative")
	}

	limit := req.Limit
	if limit == nil && (p.defaultLimit > 0 || p.maximumLimit > 0) {
		def := p.defaultLimit
		if p.maximumLimit > 0 && (def == 0 || def > p.maximumLimit) {
			def = p.maximumLimit
		}
		limit = &def
	}

	if limit != nil && p.maximumLimit > 0 && *limit > p.maximumLimit {
		return query.Window{}, caperrors.Newf(caperrors.CodeLimitExceeded, "limit %d exceeds the maximum of %d", *limit, p.maximumLimit).
			AddPath("limit")
	}

	return query.Window{Limit: limit, Offset: req.Offset}, nil
}

// Paginate counts the rows matching base and fetches the requested window of the
// identical query. Both calls run concurrently and must succeed.
func (p *Paginator) Paginate(ctx context.Context, base query.Query, req PageRequest) (*Connection, error) {
	window, err := p.Window(req)
	if err != nil {
		return nil, err
	}

	q := base.Clone()
	q.Window = &window

	var (
		total int
		rows  []query.Row
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := p.store.Count(gctx, q)
		if err != nil {
			return fmt.Errorf("failed to count %s rows: %w", q.Entity, err)
		}
		total = count
		return nil
	})
	g.Go(func() error {
		fetched, err := p.store.Fetch(gctx, q)
		if err != nil {
			return fmt.Errorf("failed to fetch %s rows: %w", q.Entity, err)
		}
		rows = fetched
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	conn := NewConnection(rows, total, window.Offset)

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"entity":   q.Entity,
		"offset":   window.Offset,
		"returned": len(rows),
		"total":    total,
	}).Debug("fetched page")

	return conn, nil
}
