//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/database"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/events"
	"github.com/hugh/evently/internal/notify"
	"github.com/hugh/evently/internal/verification"
	"github.com/hugh/evently/pkg/config"
	"github.com/hugh/evently/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)
	ctx := context.Background()

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	store := accounts.NewGormStore(db)
	sender := notify.NewLogSender(logger)
	verifier := verification.NewService(store, verification.NewIssuer(nil, nil),
		notify.NewNotifier(sender, sender, cfg.App.URL, logger), verification.Config{}, logger)

	admin, err := verifier.SignUp(ctx, verification.SignUpInput{Name: name, Email: email, Password: password})
	switch {
	case errors.Is(err, verification.ErrEmailTaken):
		fmt.Printf("Admin user already exists: %s\n", email)
		if admin, err = store.FindByEmail(ctx, email); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load admin user: %v\n", err)
			os.Exit(1)
		}
	case err != nil:
		fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	admin, err = store.Update(ctx, admin.ID, accounts.Changes{
		"role":              models.RoleAdmin,
		"email_verified_at": now,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to promote admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Admin user ready: %s (%s)\n", admin.Email, admin.Role)

	catalog := events.NewService(db, logger)
	samples := []events.CreateInput{
		{Title: "Lagos Tech Summit", Category: "Technology", Location: "Landmark Centre, Lagos", Price: 25000, Featured: true},
		{Title: "Afrobeats Live", Category: "Music", Location: "Eko Hotel, Lagos", Price: 15000, Popular: true},
		{Title: "Street Food Festival", Category: "Food and Drinks", Location: "Muri Okunola Park, Lagos", IsFree: true},
		{Title: "Abuja Art Week", Category: "Art", Location: "Thought Pyramid, Abuja", Price: 5000},
		{Title: "Founders Breakfast", Category: "Business", Location: "Ikoyi, Lagos", Price: 8000},
		{Title: "City Marathon", Category: "Sports", Location: "National Stadium, Lagos", IsFree: true, Popular: true},
	}

	var created int
	for i, sample := range samples {
		sample.Description = sample.Title + " sample event."
		sample.Date = now.AddDate(0, 0, 7*(i+1))
		if _, err := catalog.Create(ctx, admin.ID, sample); err != nil {
			fmt.Printf("Skipping %q: %v\n", sample.Title, err)
			continue
		}
		created++
	}

	fmt.Printf("Seeded %d events\n", created)
}
