package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]model.GroceryItem
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]model.GroceryItem),
	}
}

// List returns all items from the store.
func (s *MemoryStore) List(ctx context.Context) ([]model.GroceryItem, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append(make([]model.GroceryItem, 0, len(s.items)), lo.Values(s.items)...), nil
}

// Create adds a new item to the store and returns it with its generated ID.
func (s *MemoryStore) Create(ctx context.Context, name string) (*model.GroceryItem, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := newItem(name)
	s.items[item.ID] = item

	return &item, nil
}

// Update renames an existing item in the store.
func (s *MemoryStore) Update(ctx context.Context, id, name string) (*model.GroceryItem, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("update item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, notFound(id)
	}

	item.Name = name
	s.items[id] = item

	return &item, nil
}

// Delete removes an item from the store by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete item: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return notFound(id)
	}

	delete(s.items, id)

	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
