package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinica-central/helpdesk/internal/app"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/internal/shared"
)

const (
	adminEmail    = "admin@clinica.com"
	adminPassword = "Admin123!"
	companyName   = "Clinica Central"
	companySlug   = "clinica-central"
)

func main() {
	dsn := getenv("PG_DSN", app.DefaultPGDSN)
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Seeding reference catalogs...")
	if err := seedCatalogs(ctx, pool); err != nil {
		log.Fatalf("seed catalogs: %v", err)
	}
	fmt.Println("→ Seeding company and administrator...")
	if err := seedAdmin(ctx, pool); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedCatalogs(ctx context.Context, pool *pgxpool.Pool) error {
	batch := &pgx.Batch{}
	for _, name := range shared.RoleNames() {
		batch.Queue(`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	}
	for _, status := range []requests.Status{requests.StatusPending, requests.StatusInProgress, requests.StatusCompleted, requests.StatusCancelled} {
		batch.Queue(`INSERT INTO request_statuses (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, string(status))
	}

	priorities := []struct {
		name   string
		number int
	}{
		{"Baja - No afecta operaciones", 1},
		{"Media - Afecta parcialmente", 2},
		{"Alta - Afecta operaciones importantes", 3},
		{"Urgente - Afecta atención al paciente", 4},
	}
	for _, p := range priorities {
		batch.Queue(`INSERT INTO priorities (name, number) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, p.name, p.number)
	}

	types := []struct {
		name string
		code string
	}{
		{"Mantenimiento", "MT"},
		{"Soporte Técnico", "ST"},
	}
	for _, t := range types {
		batch.Queue(`INSERT INTO request_types (name, code) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, t.name, t.code)
	}

	processes := []struct {
		code        string
		name        string
		description string
	}{
		{"ADM", "Administración", "Gestión administrativa y de oficinas"},
		{"ATP", "Atención al paciente", "Consultas, urgencias y hospitalización"},
		{"INF", "Infraestructura", "Edificios, climatización e instalaciones"},
		{"TIC", "Tecnología", "Equipos, redes y sistemas clínicos"},
	}
	for _, p := range processes {
		batch.Queue(`INSERT INTO processes (code, name, description) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`, p.code, p.name, p.description)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO companies (name, slug, address)
			VALUES ($1, $2, 'Av. Principal 100')
			ON CONFLICT (slug) DO NOTHING`, companyName, companySlug); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO company_processes (company_id, process_id)
			SELECT c.id, p.id FROM companies c CROSS JOIN processes p
			WHERE c.slug = $1
			ON CONFLICT DO NOTHING`, companySlug); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (email, name, last_name, password_hash, role_id)
			SELECT $1, 'Administrador', 'Sistema', $2, r.id FROM roles r WHERE r.name = $3
			ON CONFLICT (email) DO NOTHING`, adminEmail, string(hash), shared.RoleNameSystemAdministrator); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_companies (user_id, company_id, is_admin)
			SELECT u.id, c.id, TRUE FROM users u, companies c
			WHERE u.email = $1 AND c.slug = $2
			ON CONFLICT DO NOTHING`, adminEmail, companySlug)
		return err
	})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
