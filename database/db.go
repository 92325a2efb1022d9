package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"tripmate/config"
)

var ErrNotFound = errors.New("plan not found")

// ─── Models ──────────────────────────────────────────────────────────────────

// Plan is a generated trip. Offers and weather are kept as the JSON the API
// returned so a stored plan renders exactly as it was first shown.
type Plan struct {
	ID            string    `json:"id"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureDate string    `json:"departure_date"`
	ReturnDate    string    `json:"return_date"`
	Budget        float64   `json:"budget"`
	Travelers     int       `json:"travelers"`
	Itinerary     string    `json:"itinerary"`
	WeatherJSON   string    `json:"weather_json"`
	FlightsJSON   string    `json:"flights_json"`
	HotelsJSON    string    `json:"hotels_json"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// ─── Init ─────────────────────────────────────────────────────────────────────

// Open connects to Postgres, waiting for the server to come up, and applies
// the schema.
func Open(ctx context.Context, cfg config.Postgres, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Hosted databases may take a moment to accept connections.
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Info("waiting for database", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database after retries: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("database connected and migrated")
	return s, nil
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id             TEXT PRIMARY KEY,
			origin         TEXT NOT NULL,
			destination    TEXT NOT NULL,
			departure_date TEXT NOT NULL,
			return_date    TEXT NOT NULL,
			budget         NUMERIC(12,2) NOT NULL,
			travelers      INTEGER DEFAULT 1,
			itinerary      TEXT,
			weather_json   TEXT,
			flights_json   TEXT,
			hotels_json    TEXT,
			source         TEXT NOT NULL,
			created_at     TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_plans_created_at
			ON plans(created_at DESC)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ─── CRUD ─────────────────────────────────────────────────────────────────────

func (s *Store) SavePlan(ctx context.Context, p *Plan) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO plans (id, origin, destination, departure_date, return_date, budget, travelers,
			itinerary, weather_json, flights_json, hotels_json, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`,
		p.ID, p.Origin, p.Destination, p.DepartureDate, p.ReturnDate, p.Budget, p.Travelers,
		p.Itinerary, p.WeatherJSON, p.FlightsJSON, p.HotelsJSON, p.Source).
		Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*Plan, error) {
	p := &Plan{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, origin, destination, departure_date, return_date, budget, travelers,
			itinerary, weather_json, flights_json, hotels_json, source, created_at
		FROM plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Origin, &p.Destination, &p.DepartureDate, &p.ReturnDate, &p.Budget,
			&p.Travelers, &p.Itinerary, &p.WeatherJSON, &p.FlightsJSON, &p.HotelsJSON,
			&p.Source, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
