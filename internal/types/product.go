package types

import (
	"time"
)

type Product struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int    `gorm:"column:version;not null" json:"version"`
	Discarded bool   `gorm:"column:discarded;not null;default:false;index" json:"discarded"`

	Name  string `gorm:"column:name;not null;index" json:"name"`
	Brand string `gorm:"column:brand;index" json:"brand,omitempty"`
	Unit  string `gorm:"column:unit" json:"unit,omitempty"`

	Categories []ProductCategory `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProductID;references:ID" json:"categories,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

type ProductCategory struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID string `gorm:"type:uuid;not null;index:idx_product_category,unique,priority:1" json:"product_id"`

	Category string `gorm:"column:category;not null;index:idx_product_category,unique,priority:2;index" json:"category"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProductCategory) TableName() string { return "product_category" }
