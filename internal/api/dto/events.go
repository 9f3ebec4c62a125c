package dto

import (
	"strings"
	"time"

	"github.com/hugh/evently/internal/api/validation"
	"github.com/hugh/evently/internal/events"
)

type CreateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Date        string `json:"date"` // RFC 3339 or YYYY-MM-DD
	Price       int64  `json:"price"`
	IsFree      bool   `json:"isFree"`
	Featured    bool   `json:"featured"`
	Popular     bool   `json:"popular"`
}

func (r CreateEventRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Title) == "" {
		errors["title"] = "Title is required"
	} else if len(r.Title) > validation.MaxTitleLength {
		errors["title"] = "Title is too long"
	}
	if strings.TrimSpace(r.Category) == "" {
		errors["category"] = "Category is required"
	}
	if strings.TrimSpace(r.Location) == "" {
		errors["location"] = "Location is required"
	}
	if _, err := r.ParsedDate(); err != nil {
		errors["date"] = "Date must be RFC 3339 or YYYY-MM-DD"
	}
	if r.Price < 0 {
		errors["price"] = "Price cannot be negative"
	}
	if r.Image != "" && !validation.IsValidURL(r.Image) {
		errors["image"] = "Image must be an http(s) URL"
	}

	return errors
}

func (r CreateEventRequest) ParsedDate() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, r.Date); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, r.Date)
}

func (r CreateEventRequest) Input(date time.Time) events.CreateInput {
	return events.CreateInput{
		Title:       validation.SanitizeString(r.Title),
		Description: validation.TruncateString(validation.SanitizeString(r.Description), validation.MaxDescriptionLength),
		Image:       r.Image,
		Category:    r.Category,
		Location:    validation.SanitizeString(r.Location),
		Date:        date,
		Price:       r.Price,
		IsFree:      r.IsFree,
		Featured:    r.Featured,
		Popular:     r.Popular,
	}
}
