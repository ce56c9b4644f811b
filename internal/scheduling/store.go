package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrBookingConflict is returned by the conditional insert when an active
	// appointment for the same doctor and date overlaps the requested window.
	ErrBookingConflict = errors.New("appointment window conflicts with an existing booking")
)

// Store is the shared scheduling repository. It is the only resource shared
// across sessions; implementations must be safe for concurrent use.
type Store interface {
	FindDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	// SearchDoctors matches text against doctor name or specialization,
	// case-insensitive substring. An empty result is not an error.
	SearchDoctors(ctx context.Context, text string) ([]Doctor, error)

	ListDoctors(ctx context.Context) ([]Doctor, error)

	FindAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindAppointments returns the doctor's appointments with dates in
	// [from, to] inclusive, skipping any whose status is in excluded.
	FindAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excluded []AppointmentStatus) ([]Appointment, error)

	// InsertAppointmentIfNoConflict atomically inserts appt unless an active
	// appointment for the same doctor and date overlaps appt.Window under
	// half-open semantics, in which case it returns ErrBookingConflict and
	// writes nothing. This is the write that upholds the no-double-booking
	// invariant regardless of what callers observed beforehand.
	InsertAppointmentIfNoConflict(ctx context.Context, appt *Appointment) error

	// UpdateAppointmentStatus transitions an appointment from one status to
	// another. ErrAppointmentNotFound when no row matches id+from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
}
