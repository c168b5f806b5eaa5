package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

const badgerKeyPrefix = "groceries/"

// BadgerStore implements Store on an embedded BadgerDB directory. Items are
// stored as JSON under "groceries/<id>".
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the BadgerDB directory at dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger(logger.Named("badger")))
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	logger.Info("badger store opened", zap.String("dir", dir))

	return &BadgerStore{db: db}, nil
}

// List returns all items from the store.
func (s *BadgerStore) List(ctx context.Context) ([]model.GroceryItem, error) {
	items := make([]model.GroceryItem, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var item model.GroceryItem
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return fmt.Errorf("unmarshal item: %w", err)
			}
			items = append(items, item)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

// Create stores a new item.
func (s *BadgerStore) Create(ctx context.Context, name string) (*model.GroceryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	item := newItem(name)

	err := s.db.Update(func(txn *badger.Txn) error {
		return writeBadgerItem(txn, &item)
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return &item, nil
}

// Update renames an existing item.
func (s *BadgerStore) Update(ctx context.Context, id, name string) (*model.GroceryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	var item *model.GroceryItem

	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := readBadgerItem(txn, id)
		if err != nil {
			return err
		}

		existing.Name = name
		item = existing

		return writeBadgerItem(txn, existing)
	})
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	return item, nil
}

// Delete removes an item from the store by its ID.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := readBadgerItem(txn, id); err != nil {
			return err
		}
		return txn.Delete(badgerKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	return nil
}

func badgerKey(id string) []byte {
	return []byte(badgerKeyPrefix + id)
}

func readBadgerItem(txn *badger.Txn, id string) (*model.GroceryItem, error) {
	entry, err := txn.Get(badgerKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	var item model.GroceryItem
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &item)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}

	return &item, nil
}

func writeBadgerItem(txn *badger.Txn, item *model.GroceryItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	if err := txn.Set(badgerKey(item.ID), data); err != nil {
		return fmt.Errorf("set item: %w", err)
	}

	return nil
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	logger *zap.Logger
}

func newBadgerLogger(l *zap.Logger) *badgerLogger {
	return &badgerLogger{logger: l}
}

// Debugf implements badger.Logger.
func (l *badgerLogger) Debugf(format string, a ...any) {
	l.logger.Debug(fmt.Sprintf(format, a...))
}

// Infof implements badger.Logger.
func (l *badgerLogger) Infof(format string, a ...any) {
	l.logger.Info(fmt.Sprintf(format, a...))
}

// Warningf implements badger.Logger.
func (l *badgerLogger) Warningf(format string, a ...any) {
	l.logger.Warn(fmt.Sprintf(format, a...))
}

// Errorf implements badger.Logger.
func (l *badgerLogger) Errorf(format string, a ...any) {
	l.logger.Error(fmt.Sprintf(format, a...))
}

var _ badger.Logger = (*badgerLogger)(nil)
