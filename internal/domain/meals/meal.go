// Package meals holds the meal-planning aggregate: a meal authored by a user,
// its recipes with product-referencing ingredients, per-user ratings, and
// categorical tags.
package meals

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

// TagType scopes meal tags in the shared tag table.
const TagType = "meal"

type Ingredient struct {
	ProductID string
	Quantity  string
}

type Recipe struct {
	Name         string
	Instructions string
	Ingredients  []Ingredient
	Nutrition    map[string]float64
}

type Rating struct {
	UserID  string
	Score   int
	Comment string
}

type Tag struct {
	Key      string
	Value    string
	AuthorID string
}

type Meal struct {
	aggregates.Base

	AuthorID    string
	Name        string
	Description string
	CreatedAt   time.Time

	Recipes []Recipe
	Ratings []Rating
	Tags    []Tag
}

// NewMeal is the domain factory; it assigns identity and emits MealCreated.
func NewMeal(authorID, name, description string) (*Meal, error) {
	authorID = strings.TrimSpace(authorID)
	name = strings.TrimSpace(name)
	if authorID == "" {
		return nil, aggregates.NewError(aggregates.CodeValidation, "meals.new", "author id is required", nil)
	}
	if name == "" {
		return nil, aggregates.NewError(aggregates.CodeValidation, "meals.new", "meal name is required", nil)
	}
	m := &Meal{
		AuthorID:    authorID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}
	m.ID = uuid.NewString()
	m.Apply(MealCreated{
		BaseEvent: aggregates.NewBaseEvent("meal.created", m.ID),
		AuthorID:  authorID,
		MealName:  name,
	})
	return m, nil
}

// AddRecipe appends a recipe; recipe names are unique within a meal.
func (m *Meal) AddRecipe(r Recipe) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return aggregates.NewError(aggregates.CodeValidation, "meals.add_recipe", "recipe name is required", nil)
	}
	for _, existing := range m.Recipes {
		if strings.EqualFold(existing.Name, r.Name) {
			return aggregates.NewError(aggregates.CodeValidation, "meals.add_recipe", "duplicate recipe name: "+r.Name, nil)
		}
	}
	m.Recipes = append(m.Recipes, r)
	m.Apply(RecipeAdded{
		BaseEvent:  aggregates.NewBaseEvent("meal.recipe_added", m.ID),
		RecipeName: r.Name,
	})
	return nil
}

// Rate records or replaces the rating for one user. A user rates a meal at
// most once; re-rating overwrites score and comment.
func (m *Meal) Rate(userID string, score int, comment string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return aggregates.NewError(aggregates.CodeValidation, "meals.rate", "user id is required", nil)
	}
	if score < 1 || score > 5 {
		return aggregates.NewError(aggregates.CodeValidation, "meals.rate", "score must be between 1 and 5", nil)
	}
	replaced := false
	for i := range m.Ratings {
		if m.Ratings[i].UserID == userID {
			m.Ratings[i].Score = score
			m.Ratings[i].Comment = comment
			replaced = true
			break
		}
	}
	if !replaced {
		m.Ratings = append(m.Ratings, Rating{UserID: userID, Score: score, Comment: comment})
	}
	m.Apply(MealRated{
		BaseEvent: aggregates.NewBaseEvent("meal.rated", m.ID),
		UserID:    userID,
		Score:     score,
	})
	return nil
}

// AddTag attaches a categorical tag; duplicate triples are rejected.
func (m *Meal) AddTag(key, value, authorID string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	authorID = strings.TrimSpace(authorID)
	if key == "" || value == "" || authorID == "" {
		return aggregates.NewError(aggregates.CodeValidation, "meals.add_tag", "tag key, value and author id are required", nil)
	}
	for _, t := range m.Tags {
		if t.Key == key && t.Value == value && t.AuthorID == authorID {
			return aggregates.NewError(aggregates.CodeValidation, "meals.add_tag", "duplicate tag", nil)
		}
	}
	m.Tags = append(m.Tags, Tag{Key: key, Value: value, AuthorID: authorID})
	m.Apply(MealTagged{
		BaseEvent: aggregates.NewBaseEvent("meal.tagged", m.ID),
		Key:       key,
		Value:     value,
	})
	return nil
}

func (m *Meal) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return aggregates.NewError(aggregates.CodeValidation, "meals.rename", "meal name is required", nil)
	}
	m.Name = name
	m.Apply(MealRenamed{
		BaseEvent: aggregates.NewBaseEvent("meal.renamed", m.ID),
		MealName:  name,
	})
	return nil
}

// DiscardMeal soft-deletes; the row stays behind with discarded=true.
func (m *Meal) DiscardMeal() {
	m.Discard(MealDiscarded{
		BaseEvent: aggregates.NewBaseEvent("meal.discarded", m.ID),
	})
}

// Restore rebuilds a meal from storage without emitting events.
func Restore(id string, version int, discarded bool, updatedAt time.Time, authorID, name, description string, createdAt time.Time, recipes []Recipe, ratings []Rating, tags []Tag) *Meal {
	m := &Meal{
		AuthorID:    authorID,
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
		Recipes:     recipes,
		Ratings:     ratings,
		Tags:        tags,
	}
	m.Base.Restore(id, version, discarded, updatedAt)
	return m
}
