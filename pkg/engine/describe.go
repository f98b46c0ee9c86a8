package engine

import (
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/filter"
	"github.com/Ramsey-B/thistle/pkg/sorting"
)

type FormatArgument struct {
	Name     string           `json:"name"`
	Kind     entitygraph.Kind `json:"kind"`
	Required bool             `json:"required"`
}

// FormatDescription is the format argument of one field: an enum-typed option
// plus the sub-arguments each option accepts.
type FormatDescription struct {
	Enum      string                      `json:"enum"`
	Values    []string                    `json:"values"`
	Arguments map[string][]FormatArgument `json:"arguments,omitempty"`
}

type PaginationDescription struct {
	MaximumLimit int `json:"maximumLimit,omitempty"`
	DefaultLimit int `json:"defaultLimit,omitempty"`
}

// Arguments is the argument shape of a read operation. Disabled plugins are absent.
type Arguments struct {
	Entity     string                       `json:"entity"`
	Operation  string                       `json:"operation"`
	Plugins    []string                     `json:"plugins"`
	Filter     *filter.Description          `json:"filter,omitempty"`
	Sort       *sorting.Description         `json:"sort,omitempty"`
	Format     map[string]FormatDescription `json:"format,omitempty"`
	Pagination *PaginationDescription       `json:"pagination,omitempty"`
}

func (op *ReadOperation) Arguments() Arguments {
	args := Arguments{
		Entity:    op.Entity,
		Operation: op.Name,
		Plugins:   op.Plugins(),
	}

	if op.filter != nil {
		d := op.filter.Describe()
		args.Filter = &d
	}
	if op.sort != nil {
		d := op.sort.Describe()
		args.Sort = &d
	}

	if len(op.formatted) > 0 {
		args.Format = make(map[string]FormatDescription, len(op.formatted))
		for name, e := range op.formatted {
			field, _ := op.entity.Field(name)
			desc := FormatDescription{Enum: e.Name, Values: e.Values}
			for _, option := range field.Formats {
				if len(option.Arguments) == 0 {
					continue
				}
				if desc.Arguments == nil {
					desc.Arguments = map[string][]FormatArgument{}
				}
				for _, arg := range option.Arguments {
					desc.Arguments[option.Name] = append(desc.Arguments[option.Name], FormatArgument{
						Name:     arg.Name,
						Kind:     arg.Kind,
						Required: arg.Required,
					})
				}
			}
			args.Format[name] = desc
		}
	}

	if op.paginator != nil {
		args.Pagination = &PaginationDescription{
			MaximumLimit: op.paginator.MaximumLimit(),
			DefaultLimit: op.paginator.DefaultLimit(),
		}
	}
	return args
}
