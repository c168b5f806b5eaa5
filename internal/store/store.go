// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// Store errors.
var (
	ErrNotFound = errors.New("item not found")
)

// Store defines the interface for grocery item storage operations.
// Every operation either commits completely or persists nothing.
type Store interface {
	// List returns all items from the store. The result is never nil.
	List(ctx context.Context) ([]model.GroceryItem, error)

	// Create persists a new item with a generated ID and the current time as
	// its datestamp.
	Create(ctx context.Context, name string) (*model.GroceryItem, error)

	// Update replaces the name of an existing item. The datestamp is kept.
	Update(ctx context.Context, id, name string) (*model.GroceryItem, error)

	// Delete removes an item from the store by its ID.
	Delete(ctx context.Context, id string) error

	// Close releases the underlying storage handle.
	Close() error
}

// notFound wraps ErrNotFound with the missing id.
func notFound(id string) error {
	return fmt.Errorf("item %s: %w", id, ErrNotFound)
}

// newItem builds a record for a freshly created item.
func newItem(name string) model.GroceryItem {
	return model.GroceryItem{
		ID:        uuid.New().String(),
		Name:      name,
		Datestamp: time.Now().UTC(),
	}
}
