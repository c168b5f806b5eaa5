package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
	"github.com/vyrodovalexey/groceries-api/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// validate checks request bodies for shape only. Field contents such as an
// empty item name are accepted.
var validate = validator.New(validator.WithRequiredStructEnabled())

// RESTHandler handles REST API requests for grocery items.
type RESTHandler struct {
	store     store.Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance. publisher may be nil.
func NewRESTHandler(s store.Store, publisher EventPublisher, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		store:     s,
		publisher: publisher,
		logger:    logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Welcome).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/getitems", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/postitems", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/putitems/{id}", h.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc("/deleteitems/{id}", h.DeleteItem).Methods(http.MethodDelete)
}

// Welcome handles GET / requests.
func (h *RESTHandler) Welcome(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.WelcomeResponse{Message: model.WelcomeMessage})
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ListItems handles GET /getitems requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list items", "")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

// CreateItem handles POST /postitems requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	input, err := decodeItemInput(r)
	if err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := h.store.Create(r.Context(), *input.Item)
	if err != nil {
		h.handleStoreError(w, err, "create item", "")
		return
	}

	h.publish(model.NewItemEvent(model.EventTypeCreated, item))
	h.writeJSON(w, http.StatusOK, item)
}

// UpdateItem handles PUT /putitems/{id} requests.
func (h *RESTHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	input, err := decodeItemInput(r)
	if err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	item, err := h.store.Update(r.Context(), id, *input.Item)
	if err != nil {
		h.handleStoreError(w, err, "update item", id)
		return
	}

	h.publish(model.NewItemEvent(model.EventTypeUpdated, item))
	h.writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /deleteitems/{id} requests. The response is a
// confirmation string, not the deleted record.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, "delete item", id)
		return
	}

	h.publish(model.NewDeletedEvent(id))
	h.writeJSON(w, http.StatusOK, DeleteConfirmation(id))
}

// NotFoundMessage is the error detail returned for an unknown item id.
func NotFoundMessage(id string) string {
	return fmt.Sprintf("Item with Id '%s' not found", id)
}

// DeleteConfirmation is the body returned after a successful delete.
func DeleteConfirmation(id string) string {
	return fmt.Sprintf("Successfully delete the Item with Id %s", id)
}

// decodeItemInput parses and shape-checks a create or update body.
func decodeItemInput(r *http.Request) (*model.ItemInput, error) {
	var input model.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	if err := validate.Struct(&input); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return nil, fmt.Errorf("field required: %s", validationErrs[0].Field())
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	return &input, nil
}

func (h *RESTHandler) publish(event model.ItemEvent) {
	if h.publisher != nil {
		h.publisher.Publish(event)
	}
}

// handleStoreError handles store errors and writes appropriate HTTP responses.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, err error, operation, id string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, NotFoundMessage(id))
	default:
		h.logger.Error("store operation failed",
			zap.String("operation", operation),
			zap.String("item_id", id),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, model.ErrorResponse{Detail: message})
}
