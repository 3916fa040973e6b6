// Package meals binds the meal aggregate to the generic repository:
// filter-column declarations, tag configuration, and the derived
// product-name filter backed by similarity search.
package meals

import (
	"context"
	"strings"

	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/meals"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/gorm"
)

type MealRepo struct {
	*persistence.Repository[*dm.Meal, types.Meal]
}

func NewMealRepo(tx *gorm.DB, search persistence.SimilaritySearcher, log *logger.Logger) (*MealRepo, error) {
	cfg := persistence.Config[*dm.Meal, types.Meal]{
		Name:        "meal",
		Mapper:      &Mapper{},
		Filters:     filterMappers(),
		TagRelation: "Tags",
		TagType:     dm.TagType,
		Derived:     derivedFilters(search),
		Preloads:    []string{"Recipes.Ingredients", "Ratings", "Tags"},
	}
	base, err := persistence.NewRepository(tx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &MealRepo{Repository: base}, nil
}

func filterMappers() []persistence.FilterColumnMapper {
	return []persistence.FilterColumnMapper{
		{
			Model: &types.Meal{},
			Columns: map[string]string{
				"id":         "id",
				"name":       "name",
				"author_id":  "author_id",
				"created_at": "created_at",
				"updated_at": "updated_at",
				"discarded":  "discarded",
			},
		},
		{
			Model:    &types.Recipe{},
			Columns:  map[string]string{"recipe_name": "name"},
			JoinPath: []persistence.JoinHop{{Model: "recipe", Relationship: "Recipes"}},
		},
		{
			Model:   &types.Ingredient{},
			Columns: map[string]string{"products": "product_id"},
			JoinPath: []persistence.JoinHop{
				{Model: "recipe", Relationship: "Recipes"},
				{Model: "ingredient", Relationship: "Ingredients"},
			},
		},
		{
			Model:    &types.Rating{},
			Columns:  map[string]string{"rating_user_id": "user_id", "rating_score": "score"},
			JoinPath: []persistence.JoinHop{{Model: "rating", Relationship: "Ratings"}},
		},
	}
}

// derivedFilters rewrites product_name into a products IN-filter through the
// similarity collaborator before generic resolution runs.
func derivedFilters(search persistence.SimilaritySearcher) []persistence.DerivedFilter {
	if search == nil {
		return nil
	}
	return []persistence.DerivedFilter{
		{
			Key: "product_name",
			Resolve: func(ctx context.Context, v any) (string, any, error) {
				term, ok := v.(string)
				if !ok || strings.TrimSpace(term) == "" {
					return "", nil, aggregates.NewError(aggregates.CodeFilterNotAllowed, "repository.meal.query",
						"product_name filter must be a non-empty string", nil)
				}
				ids, err := search.Search(ctx, term, persistence.MaxQueryLimit)
				if err != nil {
					return "", nil, aggregates.Wrap(aggregates.CodeInternal, "repository.meal.query", err)
				}
				return "products", ids, nil
			},
		},
	}
}
