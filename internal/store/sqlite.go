package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// schemaSQL creates the groceries table. The index on Item is not used by
// any query but is kept so existing database files stay compatible.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS groceries (
    Id TEXT PRIMARY KEY,
    Item TEXT,
    datestamp TEXT
);
CREATE INDEX IF NOT EXISTS ix_groceries_Item ON groceries (Item);
`

// busyTimeout lets concurrent writers wait for the file lock instead of
// failing with SQLITE_BUSY.
const busyTimeout = "_pragma=busy_timeout(5000)"

// SQLiteStore implements Store on top of a single SQLite database file.
// Every call checks out its own connection and runs inside a transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database file at path and ensures
// the schema exists.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?"+busyTimeout)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", path))

	return &SQLiteStore{db: db, logger: logger}, nil
}

// List returns all items from the store.
func (s *SQLiteStore) List(ctx context.Context) ([]model.GroceryItem, error) {
	items := make([]model.GroceryItem, 0)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT Id, Item, datestamp FROM groceries")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, *item)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

// Create inserts a new item. A plain INSERT is used so an id collision fails
// instead of overwriting an existing row.
func (s *SQLiteStore) Create(ctx context.Context, name string) (*model.GroceryItem, error) {
	item := newItem(name)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO groceries (Id, Item, datestamp) VALUES (?, ?, ?)",
			item.ID, item.Name, formatTime(item.Datestamp),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return &item, nil
}

// Update renames an existing item and returns the row as committed.
func (s *SQLiteStore) Update(ctx context.Context, id, name string) (*model.GroceryItem, error) {
	var item *model.GroceryItem

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE groceries SET Item = ? WHERE Id = ?", name, id)
		if err != nil {
			return err
		}
		if err := requireAffected(res, id); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT Id, Item, datestamp FROM groceries WHERE Id = ?", id)
		item, err = scanItem(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	return item, nil
}

// Delete removes an item from the store by its ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM groceries WHERE Id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite database: %w", err)
	}
	return nil
}

// withTx checks out a dedicated connection, runs fn in a transaction on it
// and commits. The connection is returned to the pool and the transaction
// rolled back on every error path.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.GroceryItem, error) {
	var (
		item      model.GroceryItem
		datestamp string
	)

	if err := row.Scan(&item.ID, &item.Name, &datestamp); err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, datestamp)
	if err != nil {
		return nil, fmt.Errorf("parse datestamp of item %s: %w", item.ID, err)
	}
	item.Datestamp = ts

	return &item, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
