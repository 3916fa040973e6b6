package persistence

import (
	"sort"
	"strings"
	"sync"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"gorm.io/gorm/schema"
)

// FilterOp is the comparison a resolved filter compiles to.
type FilterOp int

const (
	OpEq FilterOp = iota // equality, or membership when the value is a list
	OpGte
	OpLte
	OpNot       // negated equality/membership
	OpNotExists // no row value matches: NULL or outside the given set
)

// Filter key suffixes, stripped before column resolution.
const (
	suffixGte       = "_gte"
	suffixLte       = "_lte"
	suffixNot       = "_not"
	suffixNotExists = "_not_exists"
)

// JoinHop is one step of a join path: follow Relationship (a struct field
// name) off the previous hop's model onto the row model stored in Model.
type JoinHop struct {
	Model        string
	Relationship string
}

// FilterColumnMapper declares which row model owns which filter keys and, for
// keys living on a related table, the join path from the repository's root
// model to reach them. A repository holds an ordered list of these; the first
// mapper declaring a key wins.
type FilterColumnMapper struct {
	Model    any               // owning row model, e.g. &types.Recipe{}
	Columns  map[string]string // filter key -> column on Model
	JoinPath []JoinHop         // empty when Model is the root model
}

// ResolvedFilter is the output of filter-key resolution: a concrete
// (table, column) target, the join path to reach it, and the comparison
// derived from the key suffix.
type ResolvedFilter struct {
	Key      string
	Table    string
	Column   string
	JoinPath []JoinHop
	Op       FilterOp
}

// FilterResolver resolves filter keys against an ordered mapper list. It is a
// pure lookup; construction does all schema parsing up front so resolution
// can never touch the store.
type FilterResolver struct {
	mappers []FilterColumnMapper
	tables  []string
}

var schemaCache = &sync.Map{}

var defaultNamer schema.Namer = schema.NamingStrategy{}

func parseSchema(model any) (*schema.Schema, error) {
	return schema.Parse(model, schemaCache, defaultNamer)
}

// NewFilterResolver parses every mapper's owning model once. A model that
// cannot be parsed is a configuration error surfaced immediately.
func NewFilterResolver(mappers []FilterColumnMapper) (*FilterResolver, error) {
	r := &FilterResolver{mappers: mappers, tables: make([]string, len(mappers))}
	for i, m := range mappers {
		s, err := parseSchema(m.Model)
		if err != nil {
			return nil, aggregates.Wrap(aggregates.CodeInternal, "filters.resolver", err)
		}
		r.tables[i] = s.Table
	}
	return r, nil
}

// Resolve maps a filter key (optionally suffixed) to its column target.
// Unknown keys fail with CodeFilterNotAllowed before any query executes.
func (r *FilterResolver) Resolve(key string) (ResolvedFilter, error) {
	base, op := splitSuffix(key)
	for i, m := range r.mappers {
		col, ok := m.Columns[base]
		if !ok {
			continue
		}
		return ResolvedFilter{
			Key:      base,
			Table:    r.tables[i],
			Column:   col,
			JoinPath: m.JoinPath,
			Op:       op,
		}, nil
	}
	return ResolvedFilter{}, filterNotAllowed(key)
}

// AllowedFilterKeys returns the sorted set of base keys the resolver accepts.
// This is the single declared-filters allowlist; edge validators consume the
// same set.
func (r *FilterResolver) AllowedFilterKeys() []string {
	set := make(map[string]struct{})
	for _, m := range r.mappers {
		for k := range m.Columns {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func splitSuffix(key string) (string, FilterOp) {
	switch {
	case strings.HasSuffix(key, suffixNotExists):
		return strings.TrimSuffix(key, suffixNotExists), OpNotExists
	case strings.HasSuffix(key, suffixNot):
		return strings.TrimSuffix(key, suffixNot), OpNot
	case strings.HasSuffix(key, suffixGte):
		return strings.TrimSuffix(key, suffixGte), OpGte
	case strings.HasSuffix(key, suffixLte):
		return strings.TrimSuffix(key, suffixLte), OpLte
	default:
		return key, OpEq
	}
}

func filterNotAllowed(key string) error {
	return aggregates.NewError(aggregates.CodeFilterNotAllowed, "repository.query", "filter key not allowed: "+key, nil)
}
