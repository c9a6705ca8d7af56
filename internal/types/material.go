package types

import (
	"time"

	"github.com/google/uuid"
)

// RawMaterial is one entry of the controlled vocabulary ingredient names are
// chosen from. Read-mostly; the list is cached.
type RawMaterial struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Category  string    `gorm:"column:category;index" json:"category"`
	Supplier  string    `gorm:"column:supplier" json:"supplier"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RawMaterial) TableName() string { return "raw_material" }
