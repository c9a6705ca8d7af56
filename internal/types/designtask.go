package types

import (
	"time"

	"gorm.io/gorm"
)

// DesignTask is the parent work item for a customer sample. This core never
// mutates it; it exists so formula records have a real foreign key.
type DesignTask struct {
	Index        string         `gorm:"column:index;primaryKey;size:64" json:"index"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	CustomerName string         `gorm:"column:customer_name" json:"customerName"`
	SampleName   string         `gorm:"column:sample_name" json:"sampleName"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (DesignTask) TableName() string { return "design_task" }
