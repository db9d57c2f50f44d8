package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-rag/internal/models"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupMissing(t *testing.T) {
	c := openTest(t)
	e, err := c.Lookup(context.Background(), "lib", "nope.txt")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestUpsertLookupList(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "lib", Filename: "b.txt", SHA256: "h1", Size: 10, Chunks: 2}))
	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "lib", Filename: "a.txt", SHA256: "h2", Size: 5, Chunks: 1}))
	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "other", Filename: "a.txt", SHA256: "h3", Size: 5, Chunks: 1}))

	e, err := c.Lookup(ctx, "lib", "b.txt")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "h1", e.SHA256)
	assert.Equal(t, 2, e.Chunks)
	assert.False(t, e.IngestedAt.IsZero())

	// update in place
	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "lib", Filename: "b.txt", SHA256: "h9", Size: 11, Chunks: 3}))
	e, err = c.Lookup(ctx, "lib", "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "h9", e.SHA256)

	list, err := c.List(ctx, "lib")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.txt", list[0].Filename)
	assert.Equal(t, "b.txt", list[1].Filename)
}

func TestDeleteAndReset(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)
	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "lib", Filename: "a.txt", SHA256: "h"}))
	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "lib", Filename: "b.txt", SHA256: "h"}))
	require.NoError(t, c.Upsert(ctx, models.CatalogEntry{Library: "other", Filename: "c.txt", SHA256: "h"}))

	require.NoError(t, c.Delete(ctx, "lib", "a.txt"))
	list, _ := c.List(ctx, "lib")
	assert.Len(t, list, 1)

	require.NoError(t, c.Reset(ctx, "lib"))
	list, _ = c.List(ctx, "lib")
	assert.Empty(t, list)

	list, _ = c.List(ctx, "other")
	assert.Len(t, list, 1)
}
