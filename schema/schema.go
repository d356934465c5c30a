package schema

import (
	"fmt"
	"sort"
	"strings"
)

// QueryType names one admin console command, "pools" is issued as SHOW POOLS.
type QueryType string

func (q QueryType) Command() string {
	return "SHOW " + strings.ToUpper(string(q))
}

type Role int

const (
	_ Role = iota
	Tag
	Field
	Omit
)

func (r Role) String() string {
	switch r {
	case Tag:
		return "tag"
	case Field:
		return "field"
	case Omit:
		return "omit"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tag":
		return Tag, nil
	case "field":
		return Field, nil
	case "omit":
		return Omit, nil
	default:
		return 0, fmt.Errorf("unknown column role %q", s)
	}
}

type Entry struct {
	Query  QueryType
	Column string
	Role   Role
}

type UnknownColumnError struct {
	Query  QueryType
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("no role registered for column %q of query type %q", e.Column, e.Query)
}

type UnknownQueryError struct {
	Query QueryType
}

func (e *UnknownQueryError) Error() string {
	return fmt.Sprintf("unknown query type %q", e.Query)
}

// Registry maps (query type, column) to a role. It is never modified after construction
// and is safe for concurrent readers.
type Registry struct {
	roles   map[QueryType]map[string]Role
	columns map[QueryType][]string
}

// New builds a registry from a flat table. A (query, column) pair may appear only once.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{
		roles:   make(map[QueryType]map[string]Role),
		columns: make(map[QueryType][]string),
	}
	for _, e := range entries {
		if err := r.add(e, false); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(e Entry, override bool) error {
	if e.Query == "" || e.Column == "" {
		return fmt.Errorf("empty query type or column in entry %+v", e)
	}
	if e.Role != Tag && e.Role != Field && e.Role != Omit {
		return fmt.Errorf("invalid role %s for %s.%s", e.Role, e.Query, e.Column)
	}
	cols, exist := r.roles[e.Query]
	if !exist {
		cols = make(map[string]Role)
		r.roles[e.Query] = cols
	}
	if _, dup := cols[e.Column]; dup {
		if !override {
			return fmt.Errorf("duplicate entry for %s.%s", e.Query, e.Column)
		}
	} else {
		r.columns[e.Query] = append(r.columns[e.Query], e.Column)
	}
	cols[e.Column] = e.Role
	return nil
}

// Extend returns a copy of r with entries applied on top. Existing pairs are overridden,
// new query types are added. r itself is left untouched.
func (r *Registry) Extend(entries []Entry) (*Registry, error) {
	n := &Registry{
		roles:   make(map[QueryType]map[string]Role, len(r.roles)),
		columns: make(map[QueryType][]string, len(r.columns)),
	}
	for q, cols := range r.roles {
		m := make(map[string]Role, len(cols))
		for c, role := range cols {
			m[c] = role
		}
		n.roles[q] = m
		n.columns[q] = append([]string(nil), r.columns[q]...)
	}
	for _, e := range entries {
		if err := n.add(e, true); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (r *Registry) RoleOf(q QueryType, column string) (Role, error) {
	role, exist := r.roles[q][column]
	if !exist {
		return 0, &UnknownColumnError{Query: q, Column: column}
	}
	return role, nil
}

func (r *Registry) Has(q QueryType) bool {
	_, exist := r.roles[q]
	return exist
}

// Lookup validates a user supplied query type name, case is ignored.
func (r *Registry) Lookup(name string) (QueryType, error) {
	q := QueryType(strings.ToLower(strings.TrimSpace(name)))
	if !r.Has(q) {
		return "", &UnknownQueryError{Query: q}
	}
	return q, nil
}

func (r *Registry) Types() []QueryType {
	types := make([]QueryType, 0, len(r.roles))
	for q := range r.roles {
		types = append(types, q)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// TagOwners lists, sorted, the query types that register column as a Tag.
func (r *Registry) TagOwners(column string) []QueryType {
	var owners []QueryType
	for q, cols := range r.roles {
		if cols[column] == Tag {
			owners = append(owners, q)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

// Columns lists the registered columns of q in table order.
func (r *Registry) Columns(q QueryType) []string {
	return append([]string(nil), r.columns[q]...)
}

var defaultRegistry = mustNew(builtin())

func mustNew(entries []Entry) *Registry {
	r, err := New(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// Default is the registry of every admin console command known to this build.
func Default() *Registry {
	return defaultRegistry
}
