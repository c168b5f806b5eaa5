// Package model defines data structures used throughout the application.
package model

import (
	"time"
)

// WelcomeMessage is returned by the root endpoint.
const WelcomeMessage = "Welcome to the Groceries API."

// GroceryItem represents one entry of the grocery list.
//
// Datestamp is assigned when the item is created and is never touched by
// updates; only Name changes after creation.
type GroceryItem struct {
	ID        string    `json:"Id"`
	Name      string    `json:"Item"`
	Datestamp time.Time `json:"datestamp"`
}

// ItemInput is the request body accepted by the create and update endpoints.
// Any other field supplied by the caller, including an Id, is ignored.
type ItemInput struct {
	Item *string `json:"Item" validate:"required"`
}

// WelcomeResponse is the body of the root endpoint.
type WelcomeResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Item event types.
const (
	EventTypeCreated = "created"
	EventTypeUpdated = "updated"
	EventTypeDeleted = "deleted"
)

// ItemEvent describes a committed change to the grocery list. It is sent to
// subscribers of the item feed.
type ItemEvent struct {
	Type      string       `json:"type"`
	ID        string       `json:"Id"`
	Item      *GroceryItem `json:"item,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewItemEvent creates an event for a created or updated item.
func NewItemEvent(eventType string, item *GroceryItem) ItemEvent {
	return ItemEvent{
		Type:      eventType,
		ID:        item.ID,
		Item:      item,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeletedEvent creates an event for a deleted item.
func NewDeletedEvent(id string) ItemEvent {
	return ItemEvent{
		Type:      EventTypeDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}
