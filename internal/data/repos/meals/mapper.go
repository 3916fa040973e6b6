package meals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/meals"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/gorm"
)

// Mapper converts between the meal aggregate and its row models. Child
// collections (recipes with ingredients, ratings, tags) reconcile against
// existing rows by natural key under a shared deadline.
type Mapper struct {
	Timeout time.Duration
}

func (mp *Mapper) timeout() time.Duration {
	if mp.Timeout > 0 {
		return mp.Timeout
	}
	return persistence.DefaultReconcileTimeout
}

func (mp *Mapper) DomainToRow(dbc dbctx.Context, m *dm.Meal, merge bool) (*types.Meal, bool, error) {
	exists := true
	var found types.Meal
	err := dbc.DB().Select("id").First(&found, "id = ?", m.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exists = false
		// Nothing stored yet, so there is nothing to copy onto.
		merge = true
	case err != nil:
		return nil, false, persistence.MapStoreError("mapper.meal", err)
	}

	recipeRows := make([]types.Recipe, len(m.Recipes))
	ratingRows := make([]types.Rating, len(m.Ratings))
	tagRows := make([]types.Tag, len(m.Tags))

	var tasks []persistence.ChildTask
	for i := range m.Recipes {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return mp.reconcileRecipe(stx, m.ID, m.Recipes[i], merge, &recipeRows[i])
		})
	}
	for i := range m.Ratings {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return mp.reconcileRating(stx, m.ID, m.Ratings[i], &ratingRows[i])
		})
	}
	for i := range m.Tags {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return reconcileTag(stx, m.Tags[i].Key, m.Tags[i].Value, m.Tags[i].AuthorID, dm.TagType, &tagRows[i])
		})
	}
	if err := persistence.ReconcileChildren(dbc, mp.timeout(), tasks); err != nil {
		return nil, false, err
	}

	row := &types.Meal{
		ID:          m.ID,
		Version:     m.AggregateVersion(),
		Discarded:   m.IsDiscarded(),
		AuthorID:    m.AuthorID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		Recipes:     recipeRows,
		Ratings:     ratingRows,
		Tags:        tagRows,
	}
	if exists {
		err := dbc.DB().Session(&gorm.Session{FullSaveAssociations: true}).Save(row).Error
		if err != nil {
			return nil, false, persistence.MapStoreError("mapper.meal", err)
		}
		return row, true, nil
	}
	return row, false, nil
}

// reconcileRecipe matches a domain recipe to its row by (meal_id, name) and
// reconciles the nested ingredient rows by (recipe_id, product_id) in memory
// off the preloaded collection.
func (mp *Mapper) reconcileRecipe(stx *persistence.SerialTx, mealID string, r dm.Recipe, mergeChildren bool, out *types.Recipe) error {
	var existing types.Recipe
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().Preload("Ingredients").
			Where("meal_id = ? AND name = ?", mealID, r.Name).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.meal.recipe", err)
	}); err != nil {
		return err
	}

	nutrition, err := marshalNutrition(r.Nutrition)
	if err != nil {
		return err
	}

	recipeID := existing.ID
	if notFound {
		recipeID = uuid.NewString()
	}
	ingRows := make([]types.Ingredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		row := types.Ingredient{
			ID:        uuid.NewString(),
			RecipeID:  recipeID,
			ProductID: ing.ProductID,
			Quantity:  ing.Quantity,
		}
		for _, prev := range existing.Ingredients {
			if prev.ProductID == ing.ProductID {
				row.ID = prev.ID
				row.CreatedAt = prev.CreatedAt
				break
			}
		}
		ingRows = append(ingRows, row)
	}

	if notFound {
		*out = types.Recipe{
			ID:           recipeID,
			MealID:       mealID,
			Name:         r.Name,
			Instructions: r.Instructions,
			Nutrition:    nutrition,
			Ingredients:  ingRows,
		}
		return nil
	}

	if mergeChildren {
		row := types.Recipe{
			ID:           recipeID,
			MealID:       mealID,
			Name:         r.Name,
			Instructions: r.Instructions,
			Nutrition:    nutrition,
			Ingredients:  ingRows,
			CreatedAt:    existing.CreatedAt,
		}
		if err := stx.Do(func(dbc dbctx.Context) error {
			return persistence.MapStoreError("mapper.meal.recipe",
				dbc.DB().Session(&gorm.Session{FullSaveAssociations: true}).Save(&row).Error)
		}); err != nil {
			return err
		}
		*out = row
		return nil
	}

	// Not merging: copy field by field onto the loaded row object.
	existing.Name = r.Name
	existing.Instructions = r.Instructions
	existing.Nutrition = nutrition
	existing.Ingredients = ingRows
	*out = existing
	return nil
}

func (mp *Mapper) reconcileRating(stx *persistence.SerialTx, mealID string, r dm.Rating, out *types.Rating) error {
	var existing types.Rating
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().Where("meal_id = ? AND user_id = ?", mealID, r.UserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.meal.rating", err)
	}); err != nil {
		return err
	}
	row := types.Rating{
		ID:      existing.ID,
		MealID:  mealID,
		UserID:  r.UserID,
		Score:   r.Score,
		Comment: r.Comment,
	}
	if notFound {
		row.ID = uuid.NewString()
	} else {
		row.CreatedAt = existing.CreatedAt
	}
	*out = row
	return nil
}

// reconcileTag resolves the shared tag row for a (key, value, author, type)
// quadruple, minting a new row when the tag has never been used. The join row
// is written through the parent's association save.
func reconcileTag(stx *persistence.SerialTx, key, value, authorID, tagType string, out *types.Tag) error {
	var existing types.Tag
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().
			Where("key = ? AND value = ? AND author_id = ? AND type = ?", key, value, authorID, tagType).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.tag", err)
	}); err != nil {
		return err
	}
	if notFound {
		*out = types.Tag{
			ID:       uuid.NewString(),
			Key:      key,
			Value:    value,
			AuthorID: authorID,
			Type:     tagType,
		}
		return nil
	}
	*out = existing
	return nil
}

func (mp *Mapper) RowToDomain(row *types.Meal) (*dm.Meal, error) {
	recipes := make([]dm.Recipe, 0, len(row.Recipes))
	for _, r := range row.Recipes {
		nutrition, err := unmarshalNutrition(r.Nutrition)
		if err != nil {
			return nil, err
		}
		ings := make([]dm.Ingredient, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			ings = append(ings, dm.Ingredient{ProductID: ing.ProductID, Quantity: ing.Quantity})
		}
		recipes = append(recipes, dm.Recipe{
			Name:         r.Name,
			Instructions: r.Instructions,
			Ingredients:  ings,
			Nutrition:    nutrition,
		})
	}
	ratings := make([]dm.Rating, 0, len(row.Ratings))
	for _, r := range row.Ratings {
		ratings = append(ratings, dm.Rating{UserID: r.UserID, Score: r.Score, Comment: r.Comment})
	}
	tags := make([]dm.Tag, 0, len(row.Tags))
	for _, t := range row.Tags {
		tags = append(tags, dm.Tag{Key: t.Key, Value: t.Value, AuthorID: t.AuthorID})
	}
	return dm.Restore(row.ID, row.Version, row.Discarded, row.UpdatedAt,
		row.AuthorID, row.Name, row.Description, row.CreatedAt,
		recipes, ratings, tags), nil
}

func marshalNutrition(n map[string]float64) ([]byte, error) {
	if n == nil {
		return nil, nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, aggregates.Wrap(aggregates.CodeMapping, "mapper.meal.nutrition", err)
	}
	return b, nil
}

func unmarshalNutrition(b []byte) (map[string]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var n map[string]float64
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, aggregates.Wrap(aggregates.CodeMapping, "mapper.meal.nutrition", err)
	}
	return n, nil
}
