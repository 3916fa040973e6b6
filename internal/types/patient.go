package types

import (
	"time"

	"gorm.io/datatypes"
)

type Patient struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int    `gorm:"column:version;not null" json:"version"`
	Discarded bool   `gorm:"column:discarded;not null;default:false;index" json:"discarded"`

	FullName    string    `gorm:"column:full_name;not null;index" json:"full_name"`
	Email       string    `gorm:"column:email;index" json:"email,omitempty"`
	DateOfBirth time.Time `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`

	Appointments []Appointment `gorm:"constraint:OnDelete:CASCADE;foreignKey:PatientID;references:ID" json:"appointments,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Patient) TableName() string { return "patient" }

type Appointment struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID string `gorm:"type:uuid;not null;index:idx_appointment_slot,unique,priority:1" json:"patient_id"`

	Practitioner string         `gorm:"column:practitioner;not null;index:idx_appointment_slot,unique,priority:2;index" json:"practitioner"`
	StartsAt     time.Time      `gorm:"column:starts_at;not null;index:idx_appointment_slot,unique,priority:3;index" json:"starts_at"`
	DurationMin  int            `gorm:"column:duration_min;not null" json:"duration_min"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Notes        datatypes.JSON `gorm:"column:notes" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Appointment) TableName() string { return "appointment" }
