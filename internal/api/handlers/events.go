package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/api/dto"
	"github.com/hugh/evently/internal/api/middleware"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/events"
)

// EventCatalog lists and creates events.
type EventCatalog interface {
	List(ctx context.Context, params events.ListParams) (*events.ListResult, error)
	Create(ctx context.Context, organizerID uuid.UUID, input events.CreateInput) (*models.Event, error)
}

type EventHandler struct {
	events EventCatalog
	opts   Options
}

func NewEventHandler(catalog EventCatalog, opts Options) *EventHandler {
	return &EventHandler{events: catalog, opts: opts}
}

// List handles GET /api/events?category=&page=&limit=. Unparseable numbers
// fall back to the defaults.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.events.List(r.Context(), events.ListParams{
		Category: q.Get("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.opts.serverError(w, r, "Failed to fetch events", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}
	date, _ := req.ParsedDate()

	event, err := h.events.Create(r.Context(), middleware.GetUserID(r.Context()), req.Input(date))
	if err != nil {
		switch {
		case errors.Is(err, events.ErrInvalidEvent):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, events.ErrSlugTaken):
			writeError(w, http.StatusConflict, "An event with this title already exists")
		default:
			h.opts.serverError(w, r, "Failed to create event", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, events.Summarize(event))
}
