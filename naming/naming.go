// Package naming turns remote Opal identifiers into relational identifiers.
//
// Names are normalized (lowercase, spaces and hyphens replaced with
// underscores, parentheses removed) and then made unique among their
// siblings by appending _1, _2, ... in first-seen order. The order in which
// names are submitted to a Resolver is therefore part of the naming contract:
// callers iterate in remote listing order and never re-sort.
package naming

import (
	"strconv"
	"strings"
)

var replacer = strings.NewReplacer(" ", "_", "-", "_", "(", "", ")", "")

// Normalize maps a remote name to its relational form.
// It does not trim: "FOO " becomes "foo_".
func Normalize(raw string) string {
	return replacer.Replace(strings.ToLower(raw))
}

// Resolver assigns collision-free names within one sibling scope
// (schemas of a catalog, tables of a schema, columns of a table).
// A Resolver is not safe for concurrent use; each rebuild owns its own.
type Resolver struct {
	used map[string]struct{}
}

// NewResolver returns a Resolver with the given names already reserved.
func NewResolver(reserved ...string) *Resolver {
	r := &Resolver{used: make(map[string]struct{}, len(reserved))}
	for _, name := range reserved {
		r.Register(name)
	}
	return r
}

// Unique normalizes raw and returns the first unused variant of it,
// registering the result.
func (r *Resolver) Unique(raw string) string {
	base := Normalize(raw)
	name := base
	for i := 1; r.Has(name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	r.Register(name)
	return name
}

// Register reserves a literal name without normalizing it.
func (r *Resolver) Register(name string) {
	if r.used == nil {
		r.used = make(map[string]struct{})
	}
	r.used[name] = struct{}{}
}

// Has reports whether name is already taken.
func (r *Resolver) Has(name string) bool {
	_, ok := r.used[name]
	return ok
}

// Len returns the number of reserved names.
func (r *Resolver) Len() int {
	return len(r.used)
}
