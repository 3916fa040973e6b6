package types

import (
	"time"

	"gorm.io/datatypes"
)

type Meal struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int    `gorm:"column:version;not null" json:"version"`
	Discarded bool   `gorm:"column:discarded;not null;default:false;index" json:"discarded"`

	AuthorID    string `gorm:"column:author_id;not null;index" json:"author_id"`
	Name        string `gorm:"column:name;not null;index" json:"name"`
	Description string `gorm:"column:description" json:"description,omitempty"`

	Recipes []Recipe `gorm:"constraint:OnDelete:CASCADE;foreignKey:MealID;references:ID" json:"recipes,omitempty"`
	Ratings []Rating `gorm:"constraint:OnDelete:CASCADE;foreignKey:MealID;references:ID" json:"ratings,omitempty"`
	Tags    []Tag    `gorm:"many2many:meal_tag" json:"tags,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Meal) TableName() string { return "meal" }

type Recipe struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	MealID string `gorm:"type:uuid;not null;index:idx_recipe_meal_name,unique,priority:1" json:"meal_id"`

	Name         string         `gorm:"column:name;not null;index:idx_recipe_meal_name,unique,priority:2" json:"name"`
	Instructions string         `gorm:"column:instructions" json:"instructions,omitempty"`
	Nutrition    datatypes.JSON `gorm:"column:nutrition" json:"nutrition,omitempty"`

	Ingredients []Ingredient `gorm:"constraint:OnDelete:CASCADE;foreignKey:RecipeID;references:ID" json:"ingredients,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Recipe) TableName() string { return "recipe" }

type Ingredient struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID string `gorm:"type:uuid;not null;index:idx_ingredient_recipe_product,unique,priority:1" json:"recipe_id"`

	ProductID string `gorm:"column:product_id;not null;index:idx_ingredient_recipe_product,unique,priority:2;index" json:"product_id"`
	Quantity  string `gorm:"column:quantity" json:"quantity,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Ingredient) TableName() string { return "ingredient" }

type Rating struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	MealID string `gorm:"type:uuid;not null;index:idx_rating_meal_user,unique,priority:1" json:"meal_id"`

	UserID  string `gorm:"column:user_id;not null;index:idx_rating_meal_user,unique,priority:2" json:"user_id"`
	Score   int    `gorm:"column:score;not null" json:"score"`
	Comment string `gorm:"column:comment" json:"comment,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Rating) TableName() string { return "rating" }
