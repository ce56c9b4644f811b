package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pg error code for exclusion constraint violations
const exclusionViolation = "23P01"

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var availability []byte

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&availability,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &d.Availability); err != nil {
			return nil, fmt.Errorf("decode availability for doctor %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.Patient.Name,
		&a.Patient.Email,
		&a.Patient.Phone,
		&a.Date,
		&a.Window.Start,
		&a.Window.End,
		&a.Reason,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = a.Date.UTC()
	return &a, nil
}

const appointmentColumns = `
	id, doctor_id, patient_name, patient_email, patient_phone,
	appointment_date, start_min, end_min, reason, notes, status,
	created_at, updated_at`

// Interface methods

func (s *PgStore) FindDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialization, availability, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) SearchDoctors(ctx context.Context, text string) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, specialization, availability, created_at, updated_at
		FROM doctors
		WHERE name ILIKE '%' || $1 || '%'
		   OR specialization ILIKE '%' || $1 || '%'
		ORDER BY name
	`, text)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDoctors(rows)
}

func (s *PgStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, specialization, availability, created_at, updated_at
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDoctors(rows)
}

func collectDoctors(rows pgx.Rows) ([]Doctor, error) {
	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) FindAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) FindAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excluded []AppointmentStatus) ([]Appointment, error) {
	statuses := make([]string, len(excluded))
	for i, st := range excluded {
		statuses[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date BETWEEN $2 AND $3
		  AND status != ALL($4)
		ORDER BY appointment_date, start_min
	`, doctorID, from, to, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertAppointmentIfNoConflict performs the conflict check and the insert in
// one statement. The schema additionally carries an exclusion constraint on
// (doctor_id, appointment_date, window) for active statuses, so even two
// writers racing past the NOT EXISTS guard cannot both commit; the loser sees
// an exclusion violation which maps to the same ErrBookingConflict.
func (s *PgStore) InsertAppointmentIfNoConflict(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_name, patient_email, patient_phone,
			appointment_date, start_min, end_min, reason, notes, status,
			created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $2
			  AND appointment_date = $6
			  AND status NOT IN ('cancelled', 'no_show')
			  AND start_min < $8
			  AND $7 < end_min
		)
		RETURNING created_at, updated_at
	`, appt.ID, appt.DoctorID, appt.Patient.Name, appt.Patient.Email, appt.Patient.Phone,
		appt.Date, appt.Window.Start, appt.Window.End, appt.Reason, appt.Notes, appt.Status)

	err := row.Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookingConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return ErrBookingConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

var _ Store = (*PgStore)(nil)
