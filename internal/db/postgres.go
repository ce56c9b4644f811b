package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// schema carries the exclusion constraint that makes double-booking
// impossible at the storage layer: no two active appointments for one doctor
// may occupy intersecting minute ranges on the same date. int4range is
// half-open, matching the booking semantics exactly.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS doctors (
	id             uuid PRIMARY KEY,
	name           text NOT NULL,
	specialization text NOT NULL,
	availability   jsonb NOT NULL DEFAULT '[]',
	created_at     timestamptz NOT NULL DEFAULT now(),
	updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
	id               uuid PRIMARY KEY,
	doctor_id        uuid NOT NULL REFERENCES doctors(id),
	patient_name     text NOT NULL DEFAULT '',
	patient_email    text NOT NULL,
	patient_phone    text NOT NULL DEFAULT '',
	appointment_date date NOT NULL,
	start_min        int NOT NULL,
	end_min          int NOT NULL,
	reason           text NOT NULL DEFAULT '',
	notes            text NOT NULL DEFAULT '',
	status           text NOT NULL,
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now(),
	CHECK (end_min > start_min),
	CONSTRAINT no_overlapping_appointments EXCLUDE USING gist (
		doctor_id WITH =,
		appointment_date WITH =,
		int4range(start_min, end_min) WITH &&
	) WHERE (status NOT IN ('cancelled', 'no_show'))
);

CREATE INDEX IF NOT EXISTS idx_appointments_doctor_date
	ON appointments (doctor_id, appointment_date);
`

// EnsureSchema creates the scheduling tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
