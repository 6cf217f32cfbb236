// Package fieldmap translates between a record store's native field names and
// the canonical names used everywhere else. Tables are declared statically and
// checked when built, so a missing or doubled mapping fails at startup rather
// than silently dropping data.
package fieldmap

import (
	"errors"
	"fmt"
	"sort"
)

// Pair binds one native name to one canonical name.
type Pair struct {
	Native    string
	Canonical string
}

// Table is a bidirectional field-name mapping.
type Table struct {
	name     string
	pairs    []Pair
	toCanon  map[string]string
	toNative map[string]string
}

// New builds a table. Natives and canonicals must each be unique and non-empty.
func New(name string, pairs ...Pair) (*Table, error) {
	t := &Table{
		name:     name,
		pairs:    append([]Pair(nil), pairs...),
		toCanon:  make(map[string]string, len(pairs)),
		toNative: make(map[string]string, len(pairs)),
	}
	var errs []error
	for _, p := range pairs {
		if p.Native == "" || p.Canonical == "" {
			errs = append(errs, fmt.Errorf("%s: empty name in pair %q/%q", name, p.Native, p.Canonical))
			continue
		}
		if prev, ok := t.toCanon[p.Native]; ok {
			errs = append(errs, fmt.Errorf("%s: native %q mapped to both %q and %q", name, p.Native, prev, p.Canonical))
			continue
		}
		if prev, ok := t.toNative[p.Canonical]; ok {
			errs = append(errs, fmt.Errorf("%s: canonical %q mapped from both %q and %q", name, p.Canonical, prev, p.Native))
			continue
		}
		t.toCanon[p.Native] = p.Canonical
		t.toNative[p.Canonical] = p.Native
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// MustNew is New for package-level tables.
func MustNew(name string, pairs ...Pair) *Table {
	t, err := New(name, pairs...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Name() string { return t.name }

// Validate checks that the table covers exactly the given canonical fields.
func (t *Table) Validate(canonicals []string) error {
	want := make(map[string]bool, len(canonicals))
	var errs []error
	for _, c := range canonicals {
		want[c] = true
		if _, ok := t.toNative[c]; !ok {
			errs = append(errs, fmt.Errorf("%s: canonical field %q has no native counterpart", t.name, c))
		}
	}
	var extra []string
	for c := range t.toNative {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		errs = append(errs, fmt.Errorf("%s: mapped field %q is not a known canonical field", t.name, c))
	}
	return errors.Join(errs...)
}

// Native returns the native name for a canonical field.
func (t *Table) Native(canonical string) (string, bool) {
	n, ok := t.toNative[canonical]
	return n, ok
}

// Canonical returns the canonical name for a native field.
func (t *Table) Canonical(native string) (string, bool) {
	c, ok := t.toCanon[native]
	return c, ok
}

// ToCanonical renames native keys. Unknown native fields are ignored.
func (t *Table) ToCanonical(native map[string]any) map[string]any {
	out := make(map[string]any, len(native))
	for k, v := range native {
		if c, ok := t.toCanon[k]; ok {
			out[c] = v
		}
	}
	return out
}

// ToNative renames canonical keys. Fields without a mapping are dropped.
func (t *Table) ToNative(canonical map[string]any) map[string]any {
	out := make(map[string]any, len(canonical))
	for k, v := range canonical {
		if n, ok := t.toNative[k]; ok {
			out[n] = v
		}
	}
	return out
}

// Enum translates enumerated values. Aliases are extra native spellings that
// are accepted on read but never written.
type Enum struct {
	table   *Table
	aliases map[string]string
}

// NewEnum builds an enum translation; every alias must point at a canonical
// value present in pairs.
func NewEnum(name string, pairs []Pair, aliases map[string]string) (*Enum, error) {
	t, err := New(name, pairs...)
	if err != nil {
		return nil, err
	}
	for native, canon := range aliases {
		if _, ok := t.toNative[canon]; !ok {
			return nil, fmt.Errorf("%s: alias %q points at unknown value %q", name, native, canon)
		}
		if _, ok := t.toCanon[native]; ok {
			return nil, fmt.Errorf("%s: alias %q shadows a primary value", name, native)
		}
	}
	return &Enum{table: t, aliases: aliases}, nil
}

func MustEnum(name string, pairs []Pair, aliases map[string]string) *Enum {
	e, err := NewEnum(name, pairs, aliases)
	if err != nil {
		panic(err)
	}
	return e
}

// Canonical maps a native value, consulting aliases after primary values.
func (e *Enum) Canonical(native string) (string, bool) {
	if c, ok := e.table.Canonical(native); ok {
		return c, true
	}
	c, ok := e.aliases[native]
	return c, ok
}

// Native maps a canonical value to its primary native spelling.
func (e *Enum) Native(canonical string) (string, bool) {
	return e.table.Native(canonical)
}

// Validate checks that every canonical value has a native spelling.
func (e *Enum) Validate(canonicals []string) error {
	return e.table.Validate(canonicals)
}
