package format

import (
	"fmt"
	"sort"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/query"
)

// Request selects a format option, and its sub-arguments, for one field.
type Request struct {
	Option string    `json:"option" validate:"required"`
	Args   Arguments `json:"args,omitempty"`
}

type step struct {
	field   string
	option  string
	args    Arguments
	applier Applier
}

// Plan is a validated set of format requests for one entity.
type Plan struct {
	entity string
	steps  []step
}

func (p Plan) IsEmpty() bool {
	return len(p.steps) == 0
}

// Compile checks each request against the field's declared format options,
// required sub-arguments and the applier's argument check. allowed limits which fields may be formatted; nil
// allows every formattable field.
func Compile(entity *entitygraph.Entity, requests map[string]Request, registry *Registry, allowed func(string) bool) (Plan, error) {
	plan := Plan{entity: entity.Name()}

	names := make([]string, 0, len(requests))
	for name := range requests {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		req := requests[name]
		field, ok := entity.Field(name)
		if !ok || !field.Formattable() || (allowed != nil && !allowed(name)) {
			return Plan{}, caperrors.New(caperrors.CodeUnsupportedArgument, "field is not formattable").
				AddEntity(entity.Name()).AddPath(name)
		}

		option := ectolinq.Find(field.Formats, func(o entitygraph.FormatOption) bool {
			return o.Name == req.Option
		})
		if req.Option == "" || option.Name != req.Option {
			return Plan{}, caperrors.Newf(caperrors.CodeUnsupportedArgument, "format option '%s' is not declared for the field", req.Option).
				AddEntity(entity.Name()).AddPath(name)
		}

		for _, arg := range option.Arguments {
			if _, present := req.Args[arg.Name]; arg.Required && !present {
				return Plan{}, caperrors.Newf(caperrors.CodeUnsupportedArgument, "format option '%s' requires argument '%s'", req.Option, arg.Name).
					AddEntity(entity.Name()).AddPath(name)
			}
		}

		applier, ok := registry.Get(req.Option)
		if !ok {
			return Plan{}, caperrors.Newf(caperrors.CodeUnsupportedArgument, "format option '%s' has no applier", req.Option).
				AddEntity(entity.Name()).AddPath(name)
		}
		if err := registry.Check(req.Option, req.Args); err != nil {
			return Plan{}, caperrors.Newf(caperrors.CodeUnsupportedArgument, "format option '%s': %s", req.Option, err.Error()).
				AddEntity(entity.Name()).AddPath(name)
		}

		plan.steps = append(plan.steps, step{field: name, option: req.Option, args: req.Args, applier: applier})
	}
	return plan, nil
}

// Apply returns a copy of row with every planned field formatted. Nil values are
// left as they are.
func (p Plan) Apply(row query.Row) (query.Row, error) {
	if p.IsEmpty() {
		return row, nil
	}

	out := make(query.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, s := range p.steps {
		value, ok := out[s.field]
		if !ok || value == nil {
			continue
		}
		formatted, err := s.applier(value, s.args)
		if err != nil {
			return nil, fmt.Errorf("failed to format %s.%s with %s: %w", p.entity, s.field, s.option, err)
		}
		out[s.field] = formatted
	}
	return out, nil
}
