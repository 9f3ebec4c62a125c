// Package events lists and creates catalogue events.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/database/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 6
	MaxLimit     = 50
	AllCategory  = "All"
)

// Categories are the catalogue filters offered by the app.
var Categories = []string{
	"Technology",
	"Food and Drinks",
	"Music",
	"Art",
	"Entertainment",
	"Gala",
	"Fashion",
	"Sports",
	"Business",
	"Health",
	"Education",
}

var (
	ErrInvalidEvent = errors.New("invalid event")
	ErrSlugTaken    = errors.New("event slug already exists")
)

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger, now: time.Now}
}

type ListParams struct {
	Category string
	Page     int
	Limit    int
}

// Normalize applies defaults and bounds.
func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Category = strings.TrimSpace(p.Category)
}

// Summary is the listing representation of an event.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Date     string    `json:"date"`
	Location string    `json:"location"`
	Image    string    `json:"image"`
	Slug     string    `json:"slug"`
	Category string    `json:"category"`
	Price    string    `json:"price"`
	IsFree   bool      `json:"isFree"`
	Featured bool      `json:"featured"`
	Upcoming bool      `json:"upcoming"`
	Popular  bool      `json:"popular"`
}

type ListResult struct {
	Events  []Summary `json:"events"`
	HasMore bool      `json:"hasMore"`
	Total   int64     `json:"total"`
}

// List returns one page of events ordered by date, optionally filtered by
// category (case-insensitive, "All" disables the filter).
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	params.Normalize()

	query := s.db.WithContext(ctx).Model(&models.Event{})
	if params.Category != "" && !strings.EqualFold(params.Category, AllCategory) {
		query = query.Where("LOWER(category) = ?", strings.ToLower(params.Category))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	var rows []models.Event
	if err := query.
		Order("date ASC").
		Offset((params.Page - 1) * params.Limit).
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for i := range rows {
		out = append(out, Summarize(&rows[i]))
	}

	return &ListResult{
		Events:  out,
		HasMore: int64(params.Page*params.Limit) < total,
		Total:   total,
	}, nil
}

func Summarize(e *models.Event) Summary {
	return Summary{
		ID:       e.ID,
		Title:    e.Title,
		Date:     e.Date.Format("1/2/2006"),
		Location: e.Location,
		Image:    e.Image,
		Slug:     e.Slug,
		Category: e.Category,
		Price:    FormatPrice(e.Price, e.IsFree),
		IsFree:   e.IsFree,
		Featured: e.Featured,
		Upcoming: e.Upcoming,
		Popular:  e.Popular,
	}
}

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders a whole-naira price, e.g. "₦8,000" or "Free".
func FormatPrice(naira int64, isFree bool) string {
	if isFree {
		return "Free"
	}
	return pricePrinter.Sprintf("₦%d", naira)
}

type CreateInput struct {
	Title       string
	Description string
	Image       string
	Category    string
	Location    string
	Date        time.Time
	Price       int64
	IsFree      bool
	Featured    bool
	Popular     bool
}

// Create stores a new event owned by organizerID.
func (s *Service) Create(ctx context.Context, organizerID uuid.UUID, input CreateInput) (*models.Event, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	category, ok := canonicalCategory(input.Category)
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidEvent, input.Category)
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidEvent)
	}
	if input.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidEvent)
	}

	price := input.Price
	if input.IsFree {
		price = 0
	}

	event := &models.Event{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Slug:        generateSlug(title, s.now()),
		Image:       input.Image,
		Category:    category,
		Location:    strings.TrimSpace(input.Location),
		Date:        input.Date,
		Price:       price,
		IsFree:      input.IsFree || price == 0,
		Featured:    input.Featured,
		Popular:     input.Popular,
		Upcoming:    input.Date.After(s.now()),
		OrganizerID: organizerID,
	}

	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.logger.Info("event created", "event_id", event.ID, "organizer_id", organizerID, "slug", event.Slug)
	return event, nil
}

func canonicalCategory(c string) (string, bool) {
	c = strings.TrimSpace(c)
	for _, known := range Categories {
		if strings.EqualFold(known, c) {
			return known, true
		}
	}
	return "", false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func generateSlug(title string, now time.Time) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, "'", "")
	slug = strings.Trim(nonSlug.ReplaceAllString(slug, "-"), "-")
	// Add timestamp to ensure uniqueness
	return slug + "-" + now.Format("0601021504")
}
