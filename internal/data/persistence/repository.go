package persistence

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	// DefaultQueryLimit caps result sets when the caller does not ask for a
	// limit; MaxQueryLimit caps what the caller may ask for.
	DefaultQueryLimit = 100
	MaxQueryLimit     = 100
)

// Structural filter keys handled before generic column resolution.
const (
	keyTags          = "tags"
	keyTagsNotExists = "tags_not_exists"
	keyLimit         = "limit"
	keySort          = "sort"
	keyDiscarded     = "discarded"
)

// DerivedFilter rewrites one filter key into another before generic
// resolution, typically by resolving a fuzzy term into an id set through a
// collaborator (e.g. similarity search).
type DerivedFilter struct {
	Key     string
	Resolve func(ctx context.Context, value any) (newKey string, newValue any, err error)
}

// Config declares one aggregate type's storage binding.
type Config[A aggregates.Aggregate, R any] struct {
	Name        string // aggregate name used in error context, e.g. "meal"
	Mapper      EntityMapper[A, R]
	Filters     []FilterColumnMapper
	TagRelation string // many2many field name on R, "" when untagged
	TagType     string
	Derived     []DerivedFilter
	Preloads    []string
}

// Repository is the generic repository: it owns one aggregate type bound to
// the transaction of the enclosing unit of work, compiles filter maps into
// join graphs and predicates, and tracks every aggregate it has loaded or
// added ("seen") for commit-time event collection.
type Repository[A aggregates.Aggregate, R any] struct {
	tx       *gorm.DB
	cfg      Config[A, R]
	log      *logger.Logger
	resolver *FilterResolver
	root     *schema.Schema

	mu      sync.Mutex
	seen    []A
	seenIdx map[string]int
	pending map[string]struct{}
}

// NewRepository binds a repository to the given transaction. Configuration
// problems (unparseable models, broken mapper declarations) fail here, not at
// query time.
func NewRepository[A aggregates.Aggregate, R any](tx *gorm.DB, cfg Config[A, R], log *logger.Logger) (*Repository[A, R], error) {
	resolver, err := NewFilterResolver(cfg.Filters)
	if err != nil {
		return nil, err
	}
	root, err := parseSchema(new(R))
	if err != nil {
		return nil, aggregates.Wrap(aggregates.CodeInternal, "repository.new", err)
	}
	if log != nil {
		log = log.With("repo", cfg.Name)
	}
	return &Repository[A, R]{
		tx:       tx,
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		root:     root,
		seenIdx:  make(map[string]int),
		pending:  make(map[string]struct{}),
	}, nil
}

// AllowedFilterKeys returns every key Query accepts: the resolver's declared
// keys plus structural and derived keys. Edge validators use the same set.
func (r *Repository[A, R]) AllowedFilterKeys() []string {
	keys := r.resolver.AllowedFilterKeys()
	keys = append(keys, keyLimit, keySort)
	if r.cfg.TagRelation != "" {
		keys = append(keys, keyTags, keyTagsNotExists)
	}
	for _, d := range r.cfg.Derived {
		keys = append(keys, d.Key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the aggregate by id, serving repeat lookups from the identity
// set so one unit of work observes one instance per aggregate.
func (r *Repository[A, R]) Get(ctx context.Context, id string) (A, error) {
	var zero A
	if a, ok := r.cached(id); ok {
		return a, nil
	}
	row, err := r.GetRow(ctx, id)
	if err != nil {
		return zero, err
	}
	a, err := r.cfg.Mapper.RowToDomain(row)
	if err != nil {
		return zero, aggregates.Wrap(aggregates.CodeMapping, r.op("get"), err)
	}
	r.remember(a, false)
	return a, nil
}

// GetRow is the row-model escape hatch used by specialized repositories that
// compose this one and need raw storage access.
func (r *Repository[A, R]) GetRow(ctx context.Context, id string) (*R, error) {
	q := r.tx.WithContext(ctx)
	for _, p := range r.cfg.Preloads {
		q = q.Preload(p)
	}
	var row R
	if err := q.First(&row, r.root.Table+".id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, aggregates.NewError(aggregates.CodeNotFound, r.op("get"),
				fmt.Sprintf("%s %s not found", r.cfg.Name, id), err)
		}
		return nil, MapStoreError(r.op("get"), err)
	}
	return &row, nil
}

// Add registers a new aggregate in the identity set; it is written on the
// next flush (or an explicit Persist).
func (r *Repository[A, R]) Add(a A) {
	r.remember(a, true)
}

// Persist maps the aggregate to its row model, reconciling children, and
// merges it into storage.
func (r *Repository[A, R]) Persist(ctx context.Context, a A) error {
	dbc := dbctx.Context{Ctx: ctx, Tx: r.tx}
	row, existed, err := r.cfg.Mapper.DomainToRow(dbc, a, true)
	if err != nil {
		return err
	}
	if !existed {
		if err := r.tx.WithContext(ctx).Create(row).Error; err != nil {
			return MapStoreError(r.op("persist"), err)
		}
	}
	r.remember(a, false)
	return nil
}

// PersistAll persists the given aggregates, or everything currently seen when
// called with none.
func (r *Repository[A, R]) PersistAll(ctx context.Context, as ...A) error {
	if len(as) == 0 {
		r.mu.Lock()
		as = append(as, r.seen...)
		r.mu.Unlock()
	}
	for _, a := range as {
		if err := r.Persist(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Flush persists aggregates that were added but never persisted. The unit of
// work calls this before finalizing its transaction.
func (r *Repository[A, R]) Flush(ctx context.Context) error {
	r.mu.Lock()
	var queued []A
	for _, a := range r.seen {
		if _, ok := r.pending[a.AggregateID()]; ok {
			queued = append(queued, a)
		}
	}
	r.mu.Unlock()
	for _, a := range queued {
		if err := r.Persist(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Query compiles the filter map and returns matching aggregates.
func (r *Repository[A, R]) Query(ctx context.Context, filters map[string]any) ([]A, error) {
	rows, err := r.QueryRows(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := make([]A, 0, len(rows))
	for _, row := range rows {
		a, err := r.cfg.Mapper.RowToDomain(row)
		if err != nil {
			return nil, aggregates.Wrap(aggregates.CodeMapping, r.op("query"), err)
		}
		r.remember(a, false)
		out = append(out, a)
	}
	return out, nil
}

// QueryRows is Query without the domain mapping: raw row models for
// specialized repositories. Results are not registered in the identity set.
func (r *Repository[A, R]) QueryRows(ctx context.Context, filters map[string]any) ([]*R, error) {
	q, err := r.compile(ctx, filters)
	if err != nil {
		return nil, err
	}
	var rows []*R
	if err := q.Find(&rows).Error; err != nil {
		return nil, MapStoreError(r.op("query"), err)
	}
	return rows, nil
}

// Seen returns the identity set in insertion order for event collection.
func (r *Repository[A, R]) Seen() []aggregates.Aggregate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]aggregates.Aggregate, len(r.seen))
	for i, a := range r.seen {
		out[i] = a
	}
	return out
}

// compile turns a filter map into an executable query. Every validation
// failure happens here, before anything touches the store.
func (r *Repository[A, R]) compile(ctx context.Context, filters map[string]any) (*gorm.DB, error) {
	f := make(map[string]any, len(filters))
	for k, v := range filters {
		f[k] = v
	}

	limit, err := popLimit(f)
	if err != nil {
		return nil, err
	}
	sortKey, _ := f[keySort].(string)
	delete(f, keySort)

	// Structural tag filters route to the tag predicate builder.
	var tagPreds []*TagPredicate
	for _, sk := range []string{keyTags, keyTagsNotExists} {
		v, ok := f[sk]
		if !ok {
			continue
		}
		delete(f, sk)
		// AllowedFilterKeys omits tag keys for untagged repositories, so the
		// query path reports the same kind as the edge validators.
		if r.cfg.TagRelation == "" {
			return nil, filterNotAllowed(sk)
		}
		triples, err := CoerceTagTriples(v)
		if err != nil {
			return nil, err
		}
		var p *TagPredicate
		if sk == keyTags {
			p, err = BuildTagFilter(r.tx, r.root, r.cfg.TagRelation, r.cfg.TagType, triples)
		} else {
			p, err = BuildNegativeTagFilter(r.tx, r.root, r.cfg.TagRelation, r.cfg.TagType, triples)
		}
		if err != nil {
			return nil, err
		}
		if p != nil {
			tagPreds = append(tagPreds, p)
		}
	}

	// Derived filters are rewritten in place before generic resolution.
	for _, d := range r.cfg.Derived {
		v, ok := f[d.Key]
		if !ok {
			continue
		}
		delete(f, d.Key)
		newKey, newVal, err := d.Resolve(ctx, v)
		if err != nil {
			return nil, err
		}
		f[newKey] = newVal
	}

	_, discardedFiltered := f[keyDiscarded]

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	js := newJoinSet()
	q := r.tx.WithContext(ctx).Model(new(R))
	for _, key := range keys {
		rf, err := r.resolver.Resolve(key)
		if err != nil {
			return nil, err
		}
		if err := js.addPath(r.root, rf.JoinPath); err != nil {
			return nil, err
		}
		q, err = applyCondition(q, rf, f[key])
		if err != nil {
			return nil, err
		}
	}

	for _, clause := range js.clauses {
		q = q.Joins(clause)
	}
	for _, p := range tagPreds {
		q = q.Where(p.SQL, p.Vars...)
	}
	if !discardedFiltered {
		q = q.Where(r.root.Table+".discarded = ?", false)
	}
	// Joins against one-to-many tables fan rows out; collapse them.
	if !js.empty() {
		q = q.Distinct(r.root.Table + ".*")
	}

	order, err := r.orderClause(sortKey)
	if err != nil {
		return nil, err
	}
	q = q.Order(order).Limit(limit)
	for _, p := range r.cfg.Preloads {
		q = q.Preload(p)
	}
	return q, nil
}

func (r *Repository[A, R]) orderClause(sortKey string) (string, error) {
	if strings.TrimSpace(sortKey) == "" {
		return r.root.Table + ".updated_at DESC", nil
	}
	parts := strings.Fields(sortKey)
	dir := "ASC"
	if len(parts) > 1 {
		switch strings.ToLower(parts[1]) {
		case "desc":
			dir = "DESC"
		case "asc":
		default:
			return "", filterNotAllowed(sortKey)
		}
	}
	rf, err := r.resolver.Resolve(parts[0])
	if err != nil {
		return "", err
	}
	if len(rf.JoinPath) > 0 {
		return "", aggregates.NewError(aggregates.CodeFilterNotAllowed, r.op("query"),
			"cannot sort by joined column: "+parts[0], nil)
	}
	return rf.Table + "." + rf.Column + " " + dir, nil
}

func (r *Repository[A, R]) op(action string) string {
	return "repository." + r.cfg.Name + "." + action
}

func (r *Repository[A, R]) cached(id string) (A, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.seenIdx[id]; ok {
		return r.seen[i], true
	}
	var zero A
	return zero, false
}

func (r *Repository[A, R]) remember(a A, pending bool) {
	id := a.AggregateID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.seenIdx[id]; ok {
		r.seen[i] = a
	} else {
		r.seenIdx[id] = len(r.seen)
		r.seen = append(r.seen, a)
	}
	if pending {
		r.pending[id] = struct{}{}
	} else {
		delete(r.pending, id)
	}
}

func popLimit(f map[string]any) (int, error) {
	v, ok := f[keyLimit]
	if !ok {
		return DefaultQueryLimit, nil
	}
	delete(f, keyLimit)
	n, ok := v.(int)
	if !ok || n <= 0 {
		return 0, aggregates.NewError(aggregates.CodeFilterNotAllowed, "repository.query",
			"limit must be a positive integer", nil)
	}
	if n > MaxQueryLimit {
		return MaxQueryLimit, nil
	}
	return n, nil
}

// applyCondition translates one resolved filter plus its value into SQL.
func applyCondition(q *gorm.DB, rf ResolvedFilter, v any) (*gorm.DB, error) {
	col := rf.Table + "." + rf.Column
	multi := isListValue(v)
	switch rf.Op {
	case OpEq:
		if multi {
			return q.Where(col+" IN ?", v), nil
		}
		return q.Where(col+" = ?", v), nil
	case OpGte, OpLte:
		if multi {
			return nil, aggregates.NewError(aggregates.CodeFilterNotAllowed, "repository.query",
				"range filter cannot take a list: "+rf.Key, nil)
		}
		if rf.Op == OpGte {
			return q.Where(col+" >= ?", v), nil
		}
		return q.Where(col+" <= ?", v), nil
	case OpNot:
		if multi {
			return q.Where(col+" NOT IN ?", v), nil
		}
		return q.Where(col+" <> ?", v), nil
	case OpNotExists:
		if multi {
			return q.Where("("+col+" IS NULL OR "+col+" NOT IN ?)", v), nil
		}
		return q.Where("("+col+" IS NULL OR "+col+" <> ?)", v), nil
	default:
		return nil, aggregates.NewError(aggregates.CodeInternal, "repository.query",
			fmt.Sprintf("unknown filter op %d", rf.Op), nil)
	}
}

func isListValue(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case string, []byte:
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
