package persistence

import (
	"fmt"
	"strings"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"gorm.io/gorm/schema"
)

// joinSet accumulates the JOIN clauses a compiled query needs. Hops are keyed
// by (owning model, relationship) so two filters sharing a join path
// contribute the clause only once.
type joinSet struct {
	keys    map[string]struct{}
	clauses []string
}

func newJoinSet() *joinSet {
	return &joinSet{keys: make(map[string]struct{})}
}

func (j *joinSet) empty() bool { return len(j.clauses) == 0 }

// addPath walks the hops from the root schema, appending deduplicated JOIN
// clauses derived from relationship metadata. The declared hop model is
// checked against the schema so a mapper pointing at the wrong table fails
// loudly instead of joining the wrong thing.
func (j *joinSet) addPath(root *schema.Schema, path []JoinHop) error {
	current := root
	for _, hop := range path {
		rel, ok := current.Relationships.Relations[hop.Relationship]
		if !ok {
			return aggregates.NewError(aggregates.CodeInternal, "repository.query",
				fmt.Sprintf("model %s has no relationship %q", current.Table, hop.Relationship), nil)
		}
		if rel.FieldSchema.Table != hop.Model {
			return aggregates.NewError(aggregates.CodeInternal, "repository.query",
				fmt.Sprintf("relationship %s.%s targets %s, mapper declares %s",
					current.Table, hop.Relationship, rel.FieldSchema.Table, hop.Model), nil)
		}
		key := current.Table + "->" + hop.Relationship
		if _, seen := j.keys[key]; !seen {
			j.keys[key] = struct{}{}
			clauses, err := relationshipJoins(rel)
			if err != nil {
				return err
			}
			j.clauses = append(j.clauses, clauses...)
		}
		current = rel.FieldSchema
	}
	return nil
}

// relationshipJoins renders one relationship hop as JOIN SQL. A many2many hop
// produces two joins (through the join table); everything else produces one.
func relationshipJoins(rel *schema.Relationship) ([]string, error) {
	if rel.Type == schema.Many2Many {
		jt := rel.JoinTable
		if jt == nil {
			return nil, aggregates.NewError(aggregates.CodeInternal, "repository.query",
				"many2many relationship "+rel.Name+" has no join table", nil)
		}
		var onJoin, onTarget []string
		for _, ref := range rel.References {
			cond := fmt.Sprintf("%s.%s = %s.%s",
				jt.Table, ref.ForeignKey.DBName,
				ref.PrimaryKey.Schema.Table, ref.PrimaryKey.DBName)
			if ref.OwnPrimaryKey {
				onJoin = append(onJoin, cond)
			} else {
				onTarget = append(onTarget, cond)
			}
		}
		if len(onJoin) == 0 || len(onTarget) == 0 {
			return nil, aggregates.NewError(aggregates.CodeInternal, "repository.query",
				"many2many relationship "+rel.Name+" has incomplete references", nil)
		}
		return []string{
			fmt.Sprintf("JOIN %s ON %s", jt.Table, strings.Join(onJoin, " AND ")),
			fmt.Sprintf("JOIN %s ON %s", rel.FieldSchema.Table, strings.Join(onTarget, " AND ")),
		}, nil
	}

	var on []string
	for _, ref := range rel.References {
		on = append(on, fmt.Sprintf("%s.%s = %s.%s",
			ref.ForeignKey.Schema.Table, ref.ForeignKey.DBName,
			ref.PrimaryKey.Schema.Table, ref.PrimaryKey.DBName))
	}
	if len(on) == 0 {
		return nil, aggregates.NewError(aggregates.CodeInternal, "repository.query",
			"relationship "+rel.Name+" has no references", nil)
	}
	return []string{fmt.Sprintf("JOIN %s ON %s", rel.FieldSchema.Table, strings.Join(on, " AND "))}, nil
}
