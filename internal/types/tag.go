package types

import (
	"time"
)

// Tag is the shared categorical tag row. Parent aggregates link to it through
// per-context many2many join tables (meal_tag, client_tag); Type scopes a tag
// to one context so key collisions across contexts stay independent.
type Tag struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	Key      string `gorm:"column:key;not null;index:idx_tag_triple,unique,priority:1" json:"key"`
	Value    string `gorm:"column:value;not null;index:idx_tag_triple,unique,priority:2" json:"value"`
	AuthorID string `gorm:"column:author_id;not null;index:idx_tag_triple,unique,priority:3" json:"author_id"`
	Type     string `gorm:"column:type;not null;index:idx_tag_triple,unique,priority:4" json:"type"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Tag) TableName() string { return "tag" }
