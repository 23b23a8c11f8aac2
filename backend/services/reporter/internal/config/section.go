package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Section is a keyed YAML mapping that remembers key order, so user passes follow the file.
type Section[T any] struct {
	keys    []string
	items   map[string]T
	present bool
}

// UnmarshalYAML decodes a mapping node entry by entry. A repeated key replaces the earlier value
// but keeps its original position.
func (s *Section[T]) UnmarshalYAML(value *yaml.Node) error {
	s.present = true
	s.keys = nil
	s.items = make(map[string]T)

	if value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var item T
		if valNode.Tag != "!!null" {
			if err := valNode.Decode(&item); err != nil {
				return fmt.Errorf("%s: %w", keyNode.Value, err)
			}
		}
		if _, seen := s.items[keyNode.Value]; !seen {
			s.keys = append(s.keys, keyNode.Value)
		}
		s.items[keyNode.Value] = item
	}
	return nil
}

// Present reports whether the section appeared in the document.
func (s *Section[T]) Present() bool {
	return s.present
}

// Keys returns ids in document order.
func (s *Section[T]) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Get returns the item stored under id.
func (s *Section[T]) Get(id string) (T, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Len returns the number of entries.
func (s *Section[T]) Len() int {
	return len(s.keys)
}

// Set appends or replaces an entry.
func (s *Section[T]) Set(id string, item T) {
	if s.items == nil {
		s.items = make(map[string]T)
	}
	if _, seen := s.items[id]; !seen {
		s.keys = append(s.keys, id)
	}
	s.items[id] = item
	s.present = true
}
