package recipe

import (
	"fmt"
	"sort"
)

// OptionMap is a name->value map of build/install options (spec.md §4.8).
// Empty-string values are significant: per spec.md §4.9 "SetOptions", they
// explicitly do NOT unset an existing value, so OptionMap preserves them
// rather than treating them as absent.
type OptionMap map[string]string

// Clone returns a shallow copy.
func (m OptionMap) Clone() OptionMap {
	out := make(OptionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Update merges other into a copy of m; SetOptions semantics apply: a
// present-but-empty value in other still overwrites m's entry (it is a
// real assignment, not an unset), matching spec.md §4.9.
func (m OptionMap) Update(other OptionMap) OptionMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (m OptionMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OptionSpec declares one option a Recipe accepts: its default value, and
// whether values outside a fixed choice list are rejected.
type OptionSpec struct {
	Name    string
	Default string
	Choices []string // empty means any value is allowed
}

func (s OptionSpec) validate(value string) error {
	if len(s.Choices) == 0 {
		return nil
	}
	for _, c := range s.Choices {
		if c == value {
			return nil
		}
	}
	return fmt.Errorf("option %q: value %q is not one of %v", s.Name, value, s.Choices)
}

// UnknownOptionError reports an input option the recipe did not declare and
// does not permit.
type UnknownOptionError struct{ Name string }

func (e UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown option: %q", e.Name)
}

// ResolveOptions enforces a recipe's declared options against inputs: every
// declared option not present in inputs is filled from its default, every
// declared option present in inputs is validated against its choice list,
// and any input key not declared is rejected unless allowUnknown is set
// (spec.md §4.8 "resolve_options").
func ResolveOptions(specs []OptionSpec, inputs OptionMap, allowUnknown bool) (OptionMap, error) {
	declared := make(map[string]OptionSpec, len(specs))
	for _, s := range specs {
		declared[s.Name] = s
	}

	resolved := make(OptionMap, len(specs))
	for _, s := range specs {
		resolved[s.Name] = s.Default
	}
	for name, value := range inputs {
		spec, ok := declared[name]
		if !ok {
			if allowUnknown {
				resolved[name] = value
				continue
			}
			return nil, UnknownOptionError{Name: name}
		}
		if err := spec.validate(value); err != nil {
			return nil, err
		}
		resolved[name] = value
	}
	return resolved, nil
}
