package entity

import (
	"gorm.io/gorm"
)

type FeedbackKind string

const (
	FeedbackPositive FeedbackKind = "positive"
	FeedbackNegative FeedbackKind = "negative"
	FeedbackDelete   FeedbackKind = "delete"
	FeedbackSkip     FeedbackKind = "skip"
)

// Valid reports whether k is one of the closed feedback kinds.
func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackPositive, FeedbackNegative, FeedbackDelete, FeedbackSkip:
		return true
	}
	return false
}

// FeedbackRecord is an append-only log entry; records are never mutated.
type FeedbackRecord struct {
	gorm.Model

	ItemID      string `gorm:"index"`
	Kind        FeedbackKind
	Explanation string `gorm:"type:text"`
	Suggestion  string `gorm:"type:text"`
	SessionID   string
}

func (FeedbackRecord) TableName() string {
	return "feedback_records"
}
