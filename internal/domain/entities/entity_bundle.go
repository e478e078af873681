package entities

import (
	"encoding/json"
	"sort"
)

// EntitySet is a set of lower-case entity strings.
type EntitySet map[string]struct{}

// NewEntitySet builds a set from the given values.
func NewEntitySet(values ...string) EntitySet {
	s := make(EntitySet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v; empty strings are ignored.
func (s EntitySet) Add(v string) {
	if v == "" {
		return
	}
	s[v] = struct{}{}
}

// Has reports whether v is in the set.
func (s EntitySet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of entities.
func (s EntitySet) Len() int {
	return len(s)
}

// Sorted returns the entities in lexical order.
func (s EntitySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s EntitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array into the set.
func (s *EntitySet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewEntitySet(values...)
	return nil
}

// EntityBundle is the categorized output of entity extraction.
type EntityBundle struct {
	All          EntitySet `json:"all_entities"`
	Conditions   EntitySet `json:"conditions"`
	Demographics EntitySet `json:"demographics"`
	Treatments   EntitySet `json:"treatments"`
	LabValues    EntitySet `json:"lab_values"`
}

// NewEntityBundle returns a bundle with every category empty.
func NewEntityBundle() EntityBundle {
	return EntityBundle{
		All:          NewEntitySet(),
		Conditions:   NewEntitySet(),
		Demographics: NewEntitySet(),
		Treatments:   NewEntitySet(),
		LabValues:    NewEntitySet(),
	}
}

// IsEmpty reports whether nothing was extracted.
func (b EntityBundle) IsEmpty() bool {
	return b.All.Len() == 0
}
