package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Relationship is a directed edge between two knowledge items. Edges are
// referenced by id, never embedded into items.
type Relationship struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time

	SourceID string `gorm:"index"`
	TargetID string `gorm:"index"`
	Kind     string
	Metadata datatypes.JSONType[map[string]any]
}

func (Relationship) TableName() string {
	return "relationships"
}
