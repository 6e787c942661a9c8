package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenIndexCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")

	ix, err := OpenIndex(path)
	require.NoError(t, err)

	require.NoError(t, ix.Add(Document{
		ID:      "1",
		Title:   "Cats 101",
		Content: "all about cats",
	}, []float64{0.1, 0.2, 0.3}))
	require.NoError(t, ix.Close())

	// Reopen: documents and the vector sidecar must survive.
	ix, err = OpenIndex(path)
	require.NoError(t, err)
	defer ix.Close()

	count, err := ix.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	hits, err := ix.Search(context.Background(), "cats", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Cats 101", hits[0].Doc.Title)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, hits[0].Vector)
}

func TestSearchRespectsLimit(t *testing.T) {
	ix := newTestIndex(t)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, ix.Add(Document{ID: id, Title: "cats " + id, Content: "cats"}, nil))
	}

	hits, err := ix.Search(context.Background(), "cats", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
