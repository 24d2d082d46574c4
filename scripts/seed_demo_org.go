// +build ignore

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Seeds a demo organization with a list, a handful of contacts and a
// welcome template so the dashboard has something to show.
//
// Usage: DATABASE_URL=postgres://... go run scripts/seed_demo_org.go

const welcomeBody = `Hi {{ first_name | default: "there" }}! Welcome to {{ org_name }}. Reply STOP to opt out.`

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orgID := uuid.New()
	_, err = db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, settings, status, created_at, updated_at)
		VALUES ($1, 'Demo Org', 'demo-org', '{"from_number": "+15550001111"}', 'active', NOW(), NOW())
		ON CONFLICT (slug) DO NOTHING`, orgID)
	if err != nil {
		log.Fatalf("Failed to create organization: %v", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT id FROM organizations WHERE slug = 'demo-org'`).Scan(&orgID)
	if err != nil {
		log.Fatalf("Failed to load organization: %v", err)
	}

	listID := uuid.New()
	_, err = db.ExecContext(ctx, `
		INSERT INTO lists (id, organization_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, 'Demo List', 'Seeded demo contacts', 'active', NOW(), NOW())`,
		listID, orgID)
	if err != nil {
		log.Fatalf("Failed to create list: %v", err)
	}

	seed := []struct {
		phone, first, last string
	}{
		{"+15551230001", "Ada", "Lovelace"},
		{"+15551230002", "Grace", "Hopper"},
		{"+15551230003", "Alan", "Turing"},
	}
	for _, c := range seed {
		_, err = db.ExecContext(ctx, `
			INSERT INTO contacts (id, organization_id, list_id, phone, phone_hash,
				first_name, last_name, status, source, created_at, updated_at)
			VALUES ($1, $2, $3, $4, encode(sha256(convert_to($4, 'UTF8')), 'hex'),
				$5, $6, 'subscribed', 'seed', NOW(), NOW())
			ON CONFLICT (organization_id, phone) DO NOTHING`,
			uuid.New(), orgID, listID, c.phone, c.first, c.last)
		if err != nil {
			log.Fatalf("Failed to create contact %s: %v", c.phone, err)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO templates (id, organization_id, name, body, created_at, updated_at)
		VALUES ($1, $2, 'welcome', $3, NOW(), NOW())
		ON CONFLICT (organization_id, name) DO NOTHING`,
		uuid.New(), orgID, welcomeBody)
	if err != nil {
		log.Fatalf("Failed to create template: %v", err)
	}

	fmt.Printf("Seeded demo org %s with list %s and %d contacts\n", orgID, listID, len(seed))
}
