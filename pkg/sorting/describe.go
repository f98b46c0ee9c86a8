package sorting

import "github.com/Ramsey-B/thistle/pkg/entitygraph"

type RelationDescription struct {
	Target string      `json:"target"`
	Sort   Description `json:"sort"`
}

// Description is the serializable form of a Shape.
type Description struct {
	Type       string                         `json:"type"`
	Fields     map[string]entitygraph.Kind    `json:"fields"`
	Relations  map[string]RelationDescription `json:"relations,omitempty"`
	Directions []string                       `json:"directions"`
}

func (s *Shape) Describe() Description {
	d := Description{
		Type:       s.TypeName,
		Fields:     make(map[string]entitygraph.Kind, len(s.fields)),
		Directions: []string{"ASC", "DESC"},
	}
	for _, f := range s.fields {
		d.Fields[f.Name] = f.Kind
	}
	if len(s.relations) > 0 {
		d.Relations = make(map[string]RelationDescription, len(s.relations))
		for _, r := range s.relations {
			d.Relations[r.Name] = RelationDescription{Target: r.Target, Sort: r.Shape.Describe()}
		}
	}
	return d
}
