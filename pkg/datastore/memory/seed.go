package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/query"
	"gopkg.in/yaml.v3"
)

// LoadSeed replaces the rows of every entity in a JSON document of the form
// {"Order": [{...}, ...]}. Field values are converted to the types the filter
// compiler produces for each field kind, including inside nested related rows.
func (s *Store) LoadSeed(r io.Reader, graph *entitygraph.Graph) error {
	var doc map[string][]query.Row
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}
	return s.loadDocument(doc, graph)
}

// LoadSeedYAML is LoadSeed for YAML fixtures.
func (s *Store) LoadSeedYAML(r io.Reader, graph *entitygraph.Graph) error {
	var doc map[string][]query.Row
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}
	return s.loadDocument(doc, graph)
}

// LoadSeedFile picks the decoder from the file extension.
func (s *Store) LoadSeedFile(path string, graph *entitygraph.Graph) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return s.LoadSeedYAML(f, graph)
	default:
		return s.LoadSeed(f, graph)
	}
}

func (s *Store) loadDocument(doc map[string][]query.Row, graph *entitygraph.Graph) error {
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rows := doc[name]
		entity, ok := graph.Entity(name)
		if !ok {
			return fmt.Errorf("seed entity '%s' is not in the graph", name)
		}
		for i, row := range rows {
			if err := convertRow(graph, entity, row); err != nil {
				return fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
		}
		s.Load(name, rows)
		s.logger.WithFields(map[string]any{"entity": name, "rows": len(rows)}).Info("Loaded seed rows")
	}
	return nil
}

func convertRow(graph *entitygraph.Graph, entity *entitygraph.Entity, row query.Row) error {
	for _, field := range entity.Fields() {
		v, ok := row[field.Name]
		if !ok || v == nil {
			continue
		}
		converted, err := comparator.Normalize(comparator.Eq, field.Kind, v)
		if err != nil {
			return fmt.Errorf("field '%s': %w", field.Name, err)
		}
		row[field.Name] = converted
	}

	for _, rel := range entity.Relations() {
		v, ok := row[rel.Name]
		if !ok || v == nil {
			continue
		}
		target, ok := graph.Target(rel)
		if !ok {
			continue
		}

		switch related := v.(type) {
		case map[string]any:
			if err := convertRow(graph, target, related); err != nil {
				return fmt.Errorf("%s: %w", rel.Name, err)
			}
		case []any:
			for i, item := range related {
				child, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("%s[%d]: expected an object, got %T", rel.Name, i, item)
				}
				if err := convertRow(graph, target, child); err != nil {
					return fmt.Errorf("%s[%d]: %w", rel.Name, i, err)
				}
			}
		default:
			return fmt.Errorf("%s: expected an object or list, got %T", rel.Name, v)
		}
	}
	return nil
}
