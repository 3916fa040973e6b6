package types

import (
	"time"

	"gorm.io/datatypes"
)

type Client struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int    `gorm:"column:version;not null" json:"version"`
	Discarded bool   `gorm:"column:discarded;not null;default:false;index" json:"discarded"`

	Email        string         `gorm:"column:email;not null;index" json:"email"`
	FullName     string         `gorm:"column:full_name" json:"full_name,omitempty"`
	SourceFormID string         `gorm:"column:source_form_id;index" json:"source_form_id,omitempty"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Answers      datatypes.JSON `gorm:"column:answers" json:"answers,omitempty"`

	Notes []ClientNote `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"notes,omitempty"`
	Tags  []Tag        `gorm:"many2many:client_tag" json:"tags,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Client) TableName() string { return "client" }

type ClientNote struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID string `gorm:"type:uuid;not null;index" json:"client_id"`

	AuthorID string `gorm:"column:author_id;not null;index" json:"author_id"`
	Body     string `gorm:"column:body;not null" json:"body"`
	NotedAt  time.Time `gorm:"column:noted_at;not null" json:"noted_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ClientNote) TableName() string { return "client_note" }
