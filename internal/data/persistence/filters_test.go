package persistence

import (
	"reflect"
	"testing"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/types"
)

func mealFilterMappers() []FilterColumnMapper {
	return []FilterColumnMapper{
		{
			Model: &types.Meal{},
			Columns: map[string]string{
				"id":         "id",
				"name":       "name",
				"author_id":  "author_id",
				"created_at": "created_at",
				"discarded":  "discarded",
			},
		},
		{
			Model:    &types.Recipe{},
			Columns:  map[string]string{"recipe_name": "name"},
			JoinPath: []JoinHop{{Model: "recipe", Relationship: "Recipes"}},
		},
	}
}

func TestResolveRootColumn(t *testing.T) {
	r, err := NewFilterResolver(mealFilterMappers())
	if err != nil {
		t.Fatalf("NewFilterResolver: %v", err)
	}

	rf, err := r.Resolve("name")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rf.Table != "meal" || rf.Column != "name" || rf.Op != OpEq || len(rf.JoinPath) != 0 {
		t.Fatalf("unexpected resolution: %+v", rf)
	}
}

func TestResolveSuffixes(t *testing.T) {
	r, err := NewFilterResolver(mealFilterMappers())
	if err != nil {
		t.Fatalf("NewFilterResolver: %v", err)
	}

	cases := []struct {
		key  string
		base string
		op   FilterOp
	}{
		{"created_at_gte", "created_at", OpGte},
		{"created_at_lte", "created_at", OpLte},
		{"author_id_not", "author_id", OpNot},
		{"author_id_not_exists", "author_id", OpNotExists},
		{"author_id", "author_id", OpEq},
	}
	for _, c := range cases {
		rf, err := r.Resolve(c.key)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", c.key, err)
		}
		if rf.Key != c.base || rf.Op != c.op {
			t.Fatalf("Resolve(%s): got base=%s op=%d, expected base=%s op=%d", c.key, rf.Key, rf.Op, c.base, c.op)
		}
	}
}

func TestResolveJoinedColumnCarriesPath(t *testing.T) {
	r, err := NewFilterResolver(mealFilterMappers())
	if err != nil {
		t.Fatalf("NewFilterResolver: %v", err)
	}

	rf, err := r.Resolve("recipe_name")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rf.Table != "recipe" || rf.Column != "name" {
		t.Fatalf("unexpected target: %+v", rf)
	}
	if len(rf.JoinPath) != 1 || rf.JoinPath[0].Relationship != "Recipes" {
		t.Fatalf("unexpected join path: %+v", rf.JoinPath)
	}
}

func TestResolveUnknownKeyFailsBeforeQuery(t *testing.T) {
	r, err := NewFilterResolver(mealFilterMappers())
	if err != nil {
		t.Fatalf("NewFilterResolver: %v", err)
	}

	_, err = r.Resolve("secret_column")
	if err == nil {
		t.Fatal("expected error for undeclared key")
	}
	if !aggregates.IsCode(err, aggregates.CodeFilterNotAllowed) {
		t.Fatalf("expected filter_not_allowed, got %v", err)
	}
}

func TestAllowedFilterKeysSorted(t *testing.T) {
	r, err := NewFilterResolver(mealFilterMappers())
	if err != nil {
		t.Fatalf("NewFilterResolver: %v", err)
	}

	got := r.AllowedFilterKeys()
	want := []string{"author_id", "created_at", "discarded", "id", "name", "recipe_name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("allowed keys: got %v, want %v", got, want)
	}
}

func TestFirstMapperWins(t *testing.T) {
	mappers := []FilterColumnMapper{
		{Model: &types.Meal{}, Columns: map[string]string{"name": "name"}},
		{
			Model:    &types.Recipe{},
			Columns:  map[string]string{"name": "name"},
			JoinPath: []JoinHop{{Model: "recipe", Relationship: "Recipes"}},
		},
	}
	r, err := NewFilterResolver(mappers)
	if err != nil {
		t.Fatalf("NewFilterResolver: %v", err)
	}
	rf, err := r.Resolve("name")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rf.Table != "meal" || len(rf.JoinPath) != 0 {
		t.Fatalf("expected root mapper to win, got %+v", rf)
	}
}
