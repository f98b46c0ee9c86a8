package filter

import (
	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
)

type FieldDescription struct {
	Kind        entitygraph.Kind        `json:"kind"`
	Comparators []comparator.Comparator `json:"comparators"`
	Custom      bool                    `json:"custom,omitempty"`
}

type RelationDescription struct {
	Target      string                  `json:"target"`
	Cardinality entitygraph.Cardinality `json:"cardinality"`
	Filter      Description             `json:"filter"`
}

// Description is the serializable form of a Shape.
type Description struct {
	Type      string                         `json:"type"`
	Fields    map[string]FieldDescription    `json:"fields"`
	Relations map[string]RelationDescription `json:"relations,omitempty"`
}

func (s *Shape) Describe() Description {
	d := Description{
		Type:   s.TypeName,
		Fields: make(map[string]FieldDescription, len(s.fields)),
	}
	for _, f := range s.fields {
		d.Fields[f.Name] = FieldDescription{Kind: f.Kind, Comparators: f.Comparators, Custom: f.IsCustom()}
	}
	if len(s.relations) > 0 {
		d.Relations = make(map[string]RelationDescription, len(s.relations))
		for _, r := range s.relations {
			d.Relations[r.Name] = RelationDescription{Target: r.Target, Cardinality: r.Cardinality, Filter: r.Shape.Describe()}
		}
	}
	return d
}
