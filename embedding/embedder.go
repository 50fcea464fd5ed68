package embedding

import (
	"context"
)

type TaskType string

const (
	TaskTypeDocument TaskType = "search_document"
	TaskTypeQuery    TaskType = "search_query"
)

func (t TaskType) String() string {
	return string(t)
}

// Embedder is the external embedding capability. The engine never assumes it
// is available: a failing Embedder degrades retrieval to the non-vector
// strategies.
type Embedder interface {
	// EmbedTexts returns one vector per input text, all of Dimension() size.
	EmbedTexts(ctx context.Context, taskType TaskType, texts ...string) ([][]float32, error)

	// Dimension is the fixed output vector size.
	Dimension() int
}
