package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// Operation result labels.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groceries_store_operations_total",
			Help: "Total number of store operations by result",
		},
		[]string{"operation", "result"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groceries_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// instrumentedStore records Prometheus metrics around another Store.
type instrumentedStore struct {
	next Store
}

// WithMetrics wraps s so every operation is counted and timed.
func WithMetrics(s Store) Store {
	return &instrumentedStore{next: s}
}

func (s *instrumentedStore) List(ctx context.Context) ([]model.GroceryItem, error) {
	defer observe("list", time.Now())
	items, err := s.next.List(ctx)
	record("list", err)
	return items, err
}

func (s *instrumentedStore) Create(ctx context.Context, name string) (*model.GroceryItem, error) {
	defer observe("create", time.Now())
	item, err := s.next.Create(ctx, name)
	record("create", err)
	return item, err
}

func (s *instrumentedStore) Update(ctx context.Context, id, name string) (*model.GroceryItem, error) {
	defer observe("update", time.Now())
	item, err := s.next.Update(ctx, id, name)
	record("update", err)
	return item, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	defer observe("delete", time.Now())
	err := s.next.Delete(ctx, id)
	record("delete", err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}

func observe(operation string, start time.Time) {
	storeOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func record(operation string, err error) {
	storeOperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	default:
		return resultError
	}
}
