package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Base
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Image       string    `json:"image"`
	Category    string    `gorm:"index;not null" json:"category"`
	Location    string    `json:"location"`
	Date        time.Time `gorm:"index;not null" json:"date"`
	Price       int64     `gorm:"not null;default:0" json:"price"` // whole naira
	IsFree      bool      `gorm:"not null;default:false" json:"is_free"`
	Featured    bool      `gorm:"not null;default:false" json:"featured"`
	Popular     bool      `gorm:"not null;default:false" json:"popular"`
	Upcoming    bool      `gorm:"not null;default:true" json:"upcoming"`

	OrganizerID uuid.UUID `gorm:"type:uuid;index;not null" json:"organizer_id"`
	Organizer   *User     `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
}

func (Event) TableName() string {
	return "events"
}
