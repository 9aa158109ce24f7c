package features

import "fmt"

// Schema is the ordered list of feature names a classifier expects.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema. Names must be non-empty and unique.
func NewSchema(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("schema has no features")
	}

	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("schema position %d has an empty feature name", i)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("schema lists feature %q more than once", name)
		}
		s.names[i] = name
		s.index[name] = i
	}
	return s, nil
}

// Names returns a copy of the ordered feature names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len is the vector width.
func (s *Schema) Len() int {
	return len(s.names)
}

// Index returns the vector position of name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Assemble orders a converted record by schema. Keys outside the schema are ignored.
// If any schema feature is absent, the error names all of them in schema order.
func Assemble(record map[string]float64, schema *Schema) ([]float64, error) {
	vec := make([]float64, len(schema.names))
	present := make([]bool, len(schema.names))

	for name, v := range record {
		if i, ok := schema.index[name]; ok {
			vec[i] = v
			present[i] = true
		}
	}

	var missing []string
	for i, ok := range present {
		if !ok {
			missing = append(missing, schema.names[i])
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFeaturesError{Missing: missing}
	}
	return vec, nil
}
