package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// storeFactory returns a fresh, empty store. The store is closed by the
// factory through t.Cleanup.
type storeFactory func(t *testing.T) Store

// runStoreContract exercises the behaviour every driver must provide.
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Helper()

	t.Run("empty store lists nothing", func(t *testing.T) {
		s := newStore(t)

		items, err := s.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("create assigns id and datestamp", func(t *testing.T) {
		s := newStore(t)

		created, err := s.Create(context.Background(), "milk")
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "milk", created.Name)
		assert.False(t, created.Datestamp.IsZero())
	})

	t.Run("empty name is accepted", func(t *testing.T) {
		s := newStore(t)

		created, err := s.Create(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "", created.Name)
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ids := make(map[string]struct{})
		for range 50 {
			created, err := s.Create(ctx, "same name")
			require.NoError(t, err)
			ids[created.ID] = struct{}{}
		}
		assert.Len(t, ids, 50)
	})

	t.Run("created item round trips through list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "bread")
		require.NoError(t, err)
		created, err := s.Create(ctx, "butter")
		require.NoError(t, err)

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)

		found := findItem(items, created.ID)
		require.NotNil(t, found, "created item should be listed")
		assert.Equal(t, "butter", found.Name)
		assert.True(t, created.Datestamp.Equal(found.Datestamp))
	})

	t.Run("update changes name and keeps datestamp", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Create(ctx, "milk")
		require.NoError(t, err)

		updated, err := s.Update(ctx, created.ID, "oat milk")
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "oat milk", updated.Name)
		assert.True(t, created.Datestamp.Equal(updated.Datestamp),
			"datestamp changed from %v to %v", created.Datestamp, updated.Datestamp)

		items, err := s.List(ctx)
		require.NoError(t, err)
		found := findItem(items, created.ID)
		require.NotNil(t, found)
		assert.Equal(t, "oat milk", found.Name)
		assert.True(t, created.Datestamp.Equal(found.Datestamp))
	})

	t.Run("update of unknown id is not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Update(context.Background(), "never-issued", "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "never-issued")
	})

	t.Run("delete removes the item", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		kept, err := s.Create(ctx, "eggs")
		require.NoError(t, err)
		created, err := s.Create(ctx, "flour")
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))

		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Nil(t, findItem(items, created.ID))
		assert.NotNil(t, findItem(items, kept.ID))

		err = s.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), created.ID)

		_, err = s.Update(ctx, created.ID, "flour")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete of unknown id is not found", func(t *testing.T) {
		s := newStore(t)

		err := s.Delete(context.Background(), "never-issued")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "never-issued")
	})
}

func findItem(items []model.GroceryItem, id string) *model.GroceryItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
