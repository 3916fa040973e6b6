package persistence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TagTriple is one (key, value, author) tag predicate input. The tag type is
// supplied separately by the owning repository.
type TagTriple struct {
	Key      string
	Value    string
	AuthorID string
}

// TagPredicate is a compiled tag condition: raw SQL with EXISTS subqueries as
// vars, applied via Where(p.SQL, p.Vars...). Nil means trivially true.
type TagPredicate struct {
	SQL  string
	Vars []any
}

type tagRelation struct {
	parentTable string
	parentPK    string
	joinTable   string
	parentFK    string
	tagTable    string
	tagPK       string
	tagFK       string
}

// tagRelationFor validates that the root model declares a many2many tag
// relationship and extracts the join metadata. A missing relationship is a
// configuration error reported once at predicate-build time.
func tagRelationFor(root *schema.Schema, relName string) (*tagRelation, error) {
	rel, ok := root.Relationships.Relations[relName]
	if !ok || rel.Type != schema.Many2Many || rel.JoinTable == nil {
		return nil, aggregates.NewError(aggregates.CodeInternal, "tagfilter.build",
			fmt.Sprintf("model %s has no many2many %q relationship", root.Table, relName), nil)
	}
	tr := &tagRelation{
		parentTable: root.Table,
		joinTable:   rel.JoinTable.Table,
		tagTable:    rel.FieldSchema.Table,
	}
	for _, ref := range rel.References {
		if ref.OwnPrimaryKey {
			tr.parentFK = ref.ForeignKey.DBName
			tr.parentPK = ref.PrimaryKey.DBName
		} else {
			tr.tagFK = ref.ForeignKey.DBName
			tr.tagPK = ref.PrimaryKey.DBName
		}
	}
	if tr.parentFK == "" || tr.tagFK == "" {
		return nil, aggregates.NewError(aggregates.CodeInternal, "tagfilter.build",
			fmt.Sprintf("relationship %s.%s has incomplete join references", root.Table, relName), nil)
	}
	return tr, nil
}

// CoerceTagTriples validates the wire shape of a tag filter value. Every
// entry must be a triple of non-empty strings; a malformed entry fails with a
// format error naming its index.
func CoerceTagTriples(v any) ([]TagTriple, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case []TagTriple:
		for i, t := range tv {
			if strings.TrimSpace(t.Key) == "" || strings.TrimSpace(t.Value) == "" || strings.TrimSpace(t.AuthorID) == "" {
				return nil, tagFormatError(i)
			}
		}
		return tv, nil
	case [][]string:
		out := make([]TagTriple, 0, len(tv))
		for i, raw := range tv {
			if len(raw) != 3 || strings.TrimSpace(raw[0]) == "" || strings.TrimSpace(raw[1]) == "" || strings.TrimSpace(raw[2]) == "" {
				return nil, tagFormatError(i)
			}
			out = append(out, TagTriple{Key: raw[0], Value: raw[1], AuthorID: raw[2]})
		}
		return out, nil
	default:
		return nil, aggregates.NewError(aggregates.CodeFilterNotAllowed, "tagfilter.build",
			fmt.Sprintf("tag filter must be a list of (key, value, author_id) triples, got %T", v), nil)
	}
}

func tagFormatError(index int) error {
	return aggregates.NewError(aggregates.CodeFilterNotAllowed, "tagfilter.build",
		fmt.Sprintf("tag filter entry %d is not a (key, value, author_id) triple of non-empty strings", index), nil)
}

// BuildTagFilter compiles tag triples into one predicate: per distinct key an
// EXISTS semi-join requiring some linked tag with that key, any of the
// grouped values, the group's author and the given type; keys are combined
// with AND. Values within one key OR through the IN list.
func BuildTagFilter(tx *gorm.DB, root *schema.Schema, relName, tagType string, triples []TagTriple) (*TagPredicate, error) {
	rel, err := tagRelationFor(root, relName)
	if err != nil {
		return nil, err
	}
	if len(triples) == 0 {
		return nil, nil
	}

	groups := groupTriples(triples)
	frags := make([]string, 0, len(groups))
	vars := make([]any, 0, len(groups))
	for _, g := range groups {
		sub := tx.Session(&gorm.Session{NewDB: true}).
			Table(rel.joinTable).
			Select("1").
			Joins(fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
				rel.tagTable, rel.tagTable, rel.tagPK, rel.joinTable, rel.tagFK)).
			Where(fmt.Sprintf("%s.%s = %s.%s",
				rel.joinTable, rel.parentFK, rel.parentTable, rel.parentPK)).
			Where(rel.tagTable+".key = ?", g.key).
			Where(rel.tagTable+".value IN ?", g.values).
			Where(rel.tagTable+".author_id = ?", g.authorID).
			Where(rel.tagTable+".type = ?", tagType)
		frags = append(frags, "EXISTS (?)")
		vars = append(vars, sub)
	}
	return &TagPredicate{SQL: strings.Join(frags, " AND "), Vars: vars}, nil
}

// BuildNegativeTagFilter negates the positive predicate as a whole: the
// parent must NOT satisfy the combined per-key conjunction. This is
// deliberately not a per-key AND of negations.
func BuildNegativeTagFilter(tx *gorm.DB, root *schema.Schema, relName, tagType string, triples []TagTriple) (*TagPredicate, error) {
	pos, err := BuildTagFilter(tx, root, relName, tagType, triples)
	if err != nil || pos == nil {
		return nil, err
	}
	return &TagPredicate{SQL: "NOT (" + pos.SQL + ")", Vars: pos.Vars}, nil
}

type tagGroup struct {
	key      string
	authorID string
	values   []string
}

// groupTriples buckets triples by key, preserving value order within a key.
// Keys are sorted so predicate composition is deterministic. The group author
// is the author of the group's first triple.
func groupTriples(triples []TagTriple) []tagGroup {
	byKey := make(map[string]*tagGroup)
	keys := make([]string, 0)
	for _, t := range triples {
		g, ok := byKey[t.Key]
		if !ok {
			g = &tagGroup{key: t.Key, authorID: t.AuthorID}
			byKey[t.Key] = g
			keys = append(keys, t.Key)
		}
		g.values = append(g.values, t.Value)
	}
	sort.Strings(keys)
	out := make([]tagGroup, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out
}
