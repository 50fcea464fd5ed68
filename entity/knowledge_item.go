package entity

import (
	"time"

	"gorm.io/datatypes"
)

type (
	// Kind is the closed discriminator for knowledge item payloads.
	Kind string

	// ValidationStatus is the user-review lifecycle label on an item.
	ValidationStatus string
)

const (
	KindFact               Kind = "fact"
	KindQA                 Kind = "qa"
	KindProcedure          Kind = "procedure"
	KindRuleSet            Kind = "rule_set"
	KindHypothesisTemplate Kind = "hypothesis_template"
	KindResponseTemplate   Kind = "response_template"
	KindConfig             Kind = "config"
	KindSessionRecord      Kind = "session_record"
	KindDialogueMemory     Kind = "dialogue_memory"
)

const (
	StatusPending   ValidationStatus = "pending"
	StatusValidated ValidationStatus = "validated"
	StatusInvalid   ValidationStatus = "invalid"
	StatusUnused    ValidationStatus = "unused"
)

// Indexed reports whether items of this kind belong in the vector index.
func (k Kind) Indexed() bool {
	switch k {
	case KindFact, KindQA, KindProcedure, KindDialogueMemory:
		return true
	}
	return false
}

// KnowledgeItem is one stored unit of information. Content is a kind-specific
// payload; the knowledge package decodes it into typed variants.
type KnowledgeItem struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Kind    Kind `gorm:"index"`
	Content datatypes.JSONType[map[string]any]

	// Embedding is present only for indexed kinds; the store mirrors it into
	// the vector index when it has the configured dimension.
	Embedding     datatypes.JSONType[[]float32]
	EmbeddingText string

	ValidationStatus   ValidationStatus `gorm:"index"`
	LastValidatedAt    *time.Time
	ValidatedBySession string

	Source  string
	OwnerID string
	Active  bool `gorm:"default:true"`
}

func (KnowledgeItem) TableName() string {
	return "knowledge_items"
}

// EmbeddingVector returns the stored embedding, or nil when absent.
func (k *KnowledgeItem) EmbeddingVector() []float32 {
	return k.Embedding.Data()
}
