// Package entitygraph is the read-only model of entities, their scalar fields and
// their relations.
//
// Relations hold the name of their target entity rather than a pointer to it, so
// self-referential and mutually-referential entities are representable without
// ownership cycles. Components that walk the graph are responsible for bounding
// their own traversal.
package entitygraph

// Kind is the scalar kind of a field.
type Kind string

const (
	KindText     Kind = "text"
	KindID       Kind = "id"
	KindInteger  Kind = "integer"
	KindDecimal  Kind = "decimal"
	KindFloat    Kind = "float"
	KindDate     Kind = "date"
	KindTime     Kind = "time"
	KindDateTime Kind = "datetime"
	KindBoolean  Kind = "boolean"
)

var kinds = map[Kind]bool{
	KindText:     true,
	KindID:       true,
	KindInteger:  true,
	KindDecimal:  true,
	KindFloat:    true,
	KindDate:     true,
	KindTime:     true,
	KindDateTime: true,
	KindBoolean:  true,
}

func (k Kind) Valid() bool {
	return kinds[k]
}

func (k Kind) IsTextual() bool {
	return k == KindText || k == KindID
}

func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindDecimal || k == KindFloat
}

func (k Kind) IsTemporal() bool {
	return k == KindDate || k == KindTime || k == KindDateTime
}

// IsOrdered reports whether values of the kind have a natural ordering for range comparisons.
func (k Kind) IsOrdered() bool {
	return k.IsNumeric() || k.IsTemporal()
}

type Cardinality string

const (
	ToOne  Cardinality = "to_one"
	ToMany Cardinality = "to_many"
)

// FormatArgument is a non-enum argument attached next to a field's format option, e.g. "limit".
type FormatArgument struct {
	Name     string
	Kind     Kind
	Required bool
}

// FormatOption is one symbolic formatting choice supported by a field.
type FormatOption struct {
	Name      string
	Arguments []FormatArgument
}

type Field struct {
	Name    string
	Kind    Kind
	Column  string
	Formats []FormatOption
}

// Formattable reports whether the field declares at least one format option.
func (f Field) Formattable() bool {
	return len(f.Formats) > 0
}

// Through describes the join table of a many-to-many relation.
type Through struct {
	Table     string
	SourceKey string
	TargetKey string
}

type Relation struct {
	Name        string
	Target      string
	Cardinality Cardinality
	LocalKey    string
	ForeignKey  string
	Through     *Through
	EdgeType    string
}

func (r Relation) IsToOne() bool {
	return r.Cardinality == ToOne
}

// Entity is immutable once its graph is built.
type Entity struct {
	name          string
	table         string
	label         string
	fields        []Field
	fieldIndex    map[string]int
	relations     []Relation
	relationIndex map[string]int
}

func (e *Entity) Name() string {
	return e.name
}

// Table is the SQL table of the entity.
func (e *Entity) Table() string {
	return e.table
}

// Label is the graph node label of the entity.
func (e *Entity) Label() string {
	return e.label
}

// Fields returns the fields in declaration order.
func (e *Entity) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

// Relations returns the relations in declaration order.
func (e *Entity) Relations() []Relation {
	out := make([]Relation, len(e.relations))
	copy(out, e.relations)
	return out
}

func (e *Entity) Relation(name string) (Relation, bool) {
	i, ok := e.relationIndex[name]
	if !ok {
		return Relation{}, false
	}
	return e.relations[i], true
}

// FormattableFields returns the fields declaring format options, in declaration order.
func (e *Entity) FormattableFields() []Field {
	var out []Field
	for _, f := range e.fields {
		if f.Formattable() {
			out = append(out, f)
		}
	}
	return out
}
