package entity

import (
	"gorm.io/gorm"
)

type DialogueRole string

const (
	DialogueRoleUser   DialogueRole = "user"
	DialogueRoleSystem DialogueRole = "system"
)

// DialogueEntry is the durable conversation log, written best-effort on every
// turn. The in-memory session buffer stays authoritative for the request path.
type DialogueEntry struct {
	gorm.Model

	SessionID string `gorm:"index"`
	Role      DialogueRole
	Text      string `gorm:"type:text"`
	Language  string
}

func (DialogueEntry) TableName() string {
	return "dialogue_entries"
}
