// Package enum generates the format-option enumerations of formattable fields
// and registers them by name, reusing structurally identical enumerations.
package enum

import (
	"slices"
	"sync"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/iancoleman/strcase"
)

// Enumeration is a named, ordered set of distinct values.
type Enumeration struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (e Enumeration) Equal(other Enumeration) bool {
	return slices.Equal(e.Values, other.Values)
}

type Outcome string

const (
	OutcomeRegistered Outcome = "registered"
	OutcomeReused     Outcome = "reused"
	OutcomeQualified  Outcome = "qualified"
	OutcomeOverride   Outcome = "override"
)

// Registry holds the enumerations generated while building read operations. It
// is populated during the build phase only; Freeze makes it read-only.
type Registry struct {
	logger ectologger.Logger

	mu     sync.RWMutex
	enums  map[string]Enumeration
	order  []string
	frozen bool
}

func NewRegistry(logger ectologger.Logger) *Registry {
	return &Registry{
		logger: logger,
		enums:  map[string]Enumeration{},
	}
}

func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) Get(name string) (Enumeration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[name]
	return e, ok
}

// All returns the registered enumerations in registration order.
func (r *Registry) All() []Enumeration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ectolinq.Map(r.order, func(name string) Enumeration {
		return r.enums[name]
	})
}

// Values returns the enumeration values of a field in declaration order.
func Values(field entitygraph.Field) []string {
	var values []string
	for _, opt := range field.Formats {
		if !slices.Contains(values, opt.Name) {
			values = append(values, opt.Name)
		}
	}
	return values
}

// ForField returns the enumeration backing the format argument of field on
// entity, registering it when needed. It returns nil when the field is not
// formattable or is ignored.
//
// The generic name <Field>Enum is tried first, then <Entity><Field>Enum. A name
// that is taken by an enumeration with different values fails with
// EnumNameCollision. An override name is used as given.
func (r *Registry) ForField(entity string, field entitygraph.Field, opts capability.EnumOptions) (*Enumeration, error) {
	if !field.Formattable() || opts.Ignored(field.Name) {
		return nil, nil
	}

	values := Values(field)

	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := opts.Override(field.Name); ok {
		return r.claim(entity, field.Name, Enumeration{Name: name, Values: values}, OutcomeOverride)
	}

	generic := Enumeration{Name: strcase.ToCamel(field.Name) + "Enum", Values: values}
	existing, taken := r.enums[generic.Name]
	if !taken || existing.Equal(generic) {
		return r.claim(entity, field.Name, generic, OutcomeRegistered)
	}

	qualified := Enumeration{Name: strcase.ToCamel(entity) + strcase.ToCamel(field.Name) + "Enum", Values: values}
	return r.claim(entity, field.Name, qualified, OutcomeQualified)
}

// claim registers candidate under its name, reuses an identical enumeration of
// that name, or fails when the name holds different values. r.mu must be held.
func (r *Registry) claim(entity, field string, candidate Enumeration, outcome Outcome) (*Enumeration, error) {
	log := r.logger.WithFields(map[string]any{
		"entity": entity,
		"field":  field,
		"enum":   candidate.Name,
	})

	if existing, ok := r.enums[candidate.Name]; ok {
		if !existing.Equal(candidate) {
			return nil, caperrors.Newf(caperrors.CodeEnumNameCollision,
				"enumeration '%s' already exists with values %v, cannot register %v", candidate.Name, existing.Values, candidate.Values).
				AddEntity(entity).AddPath(field)
		}
		metrics.RecordEnumeration(string(OutcomeReused))
		log.Debug("reused enumeration")
		return &existing, nil
	}

	if r.frozen {
		return nil, caperrors.Newf(caperrors.CodeRegistryFrozen, "cannot register enumeration '%s' after build", candidate.Name).
			AddEntity(entity).AddPath(field)
	}

	r.enums[candidate.Name] = candidate
	r.order = append(r.order, candidate.Name)
	metrics.RecordEnumeration(string(outcome))
	log.Debug("registered enumeration")
	return &candidate, nil
}
