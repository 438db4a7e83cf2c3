package mailmerge

import (
	"errors"
	"slices"
	"strings"
)

// Mapping associates template variables with data columns.  Variables without
// an entry are left as literal tokens in the output.
type Mapping map[string]string

// AutoMap maps every variable to the column with the same name, compared
// case-insensitively.  The first matching column wins; variables without a
// matching column are left out.
func AutoMap(variables, columns []string) Mapping {
	m := make(Mapping)
	for _, v := range variables {
		for _, c := range columns {
			if strings.EqualFold(v, c) {
				m[v] = c
				break
			}
		}
	}
	return m
}

// Merge returns a copy of m with the entries of other applied on top.
func (m Mapping) Merge(other Mapping) Mapping {
	out := make(Mapping, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Variables returns the mapped variable names, sorted.
func (m Mapping) Variables() []string {
	out := make([]string, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Columns returns the distinct mapped column names, sorted.
func (m Mapping) Columns() []string {
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0, len(m))
	for _, c := range m {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Validate checks every entry against the template's variables and the data's
// header.  A nil idx or nil columns skips the respective check.  All problems
// are reported together.
func (m Mapping) Validate(idx *Index, columns []string) error {
	var errs []error
	for _, v := range m.Variables() {
		c := m[v]
		if idx != nil && !idx.Has(v) {
			errs = append(errs, &MappingError{Variable: v, Column: c, Err: ErrUnknownVariable})
		}
		if columns != nil && !slices.Contains(columns, c) {
			errs = append(errs, &MappingError{Variable: v, Column: c, Err: ErrUnknownColumn})
		}
	}
	return errors.Join(errs...)
}
