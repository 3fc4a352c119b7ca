// Package params binds and validates workflow parameters.
package params

import (
	"iter"
	"sort"
	"strings"

	"github.com/codex-k8s/wfctl/internal/fault"
)

// Set is an ordered mapping of parameter names to string values.
// The zero value is ready to use.
type Set struct {
	names  []string
	values map[string]string
}

// NewSet returns a Set with the given pairs in map key order.
func NewSet(values map[string]string) *Set {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := &Set{}
	for _, k := range keys {
		s.Put(k, values[k])
	}
	return s
}

// Put sets name to value. A new name is appended; an existing one keeps its position.
func (s *Set) Put(name, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = value
}

// PutIfNotEmpty sets name only when value is not blank.
func (s *Set) PutIfNotEmpty(name, value string) {
	if strings.TrimSpace(value) != "" {
		s.Put(name, value)
	}
}

// Merge copies every pair of other into s.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for name, value := range other.All() {
		s.Put(name, value)
	}
}

// Lookup returns the value for name.
func (s *Set) Lookup(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[name]
	return v, ok
}

// Get returns the value for name or "".
func (s *Set) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns parameter names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// All iterates over pairs in insertion order.
func (s *Set) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if s == nil {
			return
		}
		for _, name := range s.names {
			if !yield(name, s.values[name]) {
				return
			}
		}
	}
}

// Join formats the set as "k=v,k2=v2".
func (s *Set) Join() string {
	parts := make([]string, 0, s.Len())
	for name, value := range s.All() {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, ",")
}

// Validate checks that every required name is present and not blank.
func (s *Set) Validate(required ...string) error {
	return validate(required, s.Lookup)
}

// Validate checks provided against the required names. It reports every
// missing name and every blank value in a single Validation fault.
func Validate(required []string, provided map[string]string) error {
	return validate(required, func(name string) (string, bool) {
		v, ok := provided[name]
		return v, ok
	})
}

func validate(required []string, lookup func(string) (string, bool)) error {
	var missing, empty []string
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		v, ok := lookup(name)
		switch {
		case !ok:
			missing = append(missing, name)
		case strings.TrimSpace(v) == "":
			empty = append(empty, name)
		}
	}
	if len(missing) == 0 && len(empty) == 0 {
		return nil
	}
	var violations []string
	if len(missing) > 0 {
		violations = append(violations, "Missing required parameters: "+strings.Join(missing, ", "))
	}
	if len(empty) > 0 {
		violations = append(violations, "Empty required parameters: "+strings.Join(empty, ", "))
	}
	return fault.Invalid(violations...)
}

// ParseAssignments parses "k=v,k2=v2" into a Set. Keys and values are
// trimmed. Entries without "=" or with an empty key are returned in skipped.
func ParseAssignments(s string) (set *Set, skipped []string) {
	set = &Set{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			skipped = append(skipped, part)
			continue
		}
		set.Put(key, strings.TrimSpace(value))
	}
	return set, skipped
}
