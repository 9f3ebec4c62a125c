package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/hugh/evently/internal/api/dto"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/events"
	"github.com/hugh/evently/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHandler_List(t *testing.T) {
	h := newHarness(t, testutil.WithRole(models.RoleOrganizer))

	start := time.Date(2030, 3, 1, 18, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		category := "Music"
		if i%2 == 1 {
			category = "Technology"
		}
		testutil.CreateTestEvent(t, h.DB, h.User, category, start.AddDate(0, 0, i))
	}

	t.Run("default page", func(t *testing.T) {
		rr := h.do(testutil.UnauthenticatedRequest(t, "GET", "/api/events", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp events.ListResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Events, events.DefaultLimit)
		assert.True(t, resp.HasMore)
		assert.Equal(t, int64(8), resp.Total)
		assert.Equal(t, "3/1/2030", resp.Events[0].Date)
		assert.Equal(t, "₦8,000", resp.Events[0].Price)
	})

	t.Run("category is case-insensitive", func(t *testing.T) {
		rr := h.do(testutil.UnauthenticatedRequest(t, "GET", "/api/events?category=music&limit=10", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp events.ListResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Events, 4)
		assert.False(t, resp.HasMore)
		for _, e := range resp.Events {
			assert.Equal(t, "Music", e.Category)
		}
	})

	t.Run("last page", func(t *testing.T) {
		rr := h.do(testutil.UnauthenticatedRequest(t, "GET", "/api/events?category=All&page=2", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp events.ListResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Events, 2)
		assert.False(t, resp.HasMore)
	})

	t.Run("bad numbers fall back to defaults", func(t *testing.T) {
		rr := h.do(testutil.UnauthenticatedRequest(t, "GET", "/api/events?page=abc&limit=-3", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp events.ListResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Events, events.DefaultLimit)
	})
}

func TestEventHandler_Create(t *testing.T) {
	body := dto.CreateEventRequest{
		Title:    "Lagos Jazz Night",
		Category: "music",
		Location: "Victoria Island, Lagos",
		Date:     "2030-06-01T19:00:00Z",
		Price:    15000,
		Image:    "https://cdn.example.com/jazz.png",
	}

	t.Run("organizer creates an event", func(t *testing.T) {
		h := newHarness(t, testutil.WithRole(models.RoleOrganizer))

		rr := h.do(testutil.AuthenticatedRequest(t, "POST", "/api/events", body, h.Token))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp events.Summary
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Lagos Jazz Night", resp.Title)
		assert.Equal(t, "Music", resp.Category)
		assert.Equal(t, "₦15,000", resp.Price)
		assert.True(t, resp.Upcoming)
		assert.Contains(t, resp.Slug, "lagos-jazz-night")

		var event models.Event
		require.NoError(t, h.DB.First(&event, "id = ?", resp.ID).Error)
		assert.Equal(t, h.User.ID, event.OrganizerID)
	})

	t.Run("admin may create", func(t *testing.T) {
		h := newHarness(t, testutil.WithRole(models.RoleAdmin))

		rr := h.do(testutil.AuthenticatedRequest(t, "POST", "/api/events", body, h.Token))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("regular user is forbidden", func(t *testing.T) {
		h := newHarness(t)

		rr := h.do(testutil.AuthenticatedRequest(t, "POST", "/api/events", body, h.Token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		h := newHarness(t)

		rr := h.do(testutil.UnauthenticatedRequest(t, "POST", "/api/events", body))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("validation errors", func(t *testing.T) {
		h := newHarness(t, testutil.WithRole(models.RoleOrganizer))

		rr := h.do(testutil.AuthenticatedRequest(t, "POST", "/api/events", dto.CreateEventRequest{Price: -1}, h.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		for _, field := range []string{"title", "category", "location", "date", "price"} {
			assert.Contains(t, resp.Details, field)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		h := newHarness(t, testutil.WithRole(models.RoleOrganizer))

		bad := body
		bad.Category = "Knitting"
		rr := h.do(testutil.AuthenticatedRequest(t, "POST", "/api/events", bad, h.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
