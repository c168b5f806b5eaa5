// Package handler provides HTTP request handlers for the Groceries API.
package handler

import (
	"github.com/vyrodovalexey/groceries-api/internal/model"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// EventPublisher receives item changes after they have been committed.
type EventPublisher interface {
	Publish(event model.ItemEvent)
}
