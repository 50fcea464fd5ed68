package embedding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixlab/aix/embedding"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewStaticEmbedder(16)

	a, err := e.EmbedTexts(ctx, embedding.TaskTypeQuery, "aynı metin", "farklı metin")
	require.NoError(t, err)
	b, err := e.EmbedTexts(ctx, embedding.TaskTypeQuery, "aynı metin")
	require.NoError(t, err)

	require.Len(t, a, 2)
	assert.Len(t, a[0], 16)
	assert.Equal(t, a[0], b[0])
	assert.NotEqual(t, a[0], a[1])
}
