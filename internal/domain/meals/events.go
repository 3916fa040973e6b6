package meals

import (
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

type MealCreated struct {
	aggregates.BaseEvent
	AuthorID string
	MealName string
}

type RecipeAdded struct {
	aggregates.BaseEvent
	RecipeName string
}

type MealRated struct {
	aggregates.BaseEvent
	UserID string
	Score  int
}

type MealTagged struct {
	aggregates.BaseEvent
	Key   string
	Value string
}

type MealRenamed struct {
	aggregates.BaseEvent
	MealName string
}

type MealDiscarded struct {
	aggregates.BaseEvent
}
