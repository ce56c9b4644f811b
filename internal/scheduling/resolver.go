package scheduling

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDayUnavailable      = errors.New("doctor has no schedule for this day")
	ErrSlotOutsideSchedule = errors.New("requested window is outside the doctor's schedule")
	ErrSlotConflict        = errors.New("requested window overlaps an existing appointment")
	ErrInvalidWindow       = errors.New("appointment window end must be after start")
)

// Resolver holds the availability and booking rules over a Store. It is the
// single validation routine for both the voice booking tool and the HTTP
// management surface; neither path may re-implement these checks.
type Resolver struct {
	store  Store
	locker Locker
}

func NewResolver(store Store, locker Locker) *Resolver {
	return &Resolver{store: store, locker: locker}
}

// CheckSlot validates that window can be booked with doctorID on date.
// It returns nil when the slot is free, or one of ErrDoctorNotFound,
// ErrDayUnavailable, ErrSlotOutsideSchedule, ErrSlotConflict.
func (r *Resolver) CheckSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, window TimeWindow) error {
	if !window.Valid() {
		return ErrInvalidWindow
	}

	doctor, err := r.store.FindDoctorByID(ctx, doctorID)
	if err != nil {
		return err
	}

	declared := doctor.WindowsOn(date)
	if len(declared) == 0 {
		return ErrDayUnavailable
	}

	inside := false
	for _, slot := range declared {
		if slot.Contains(window) {
			inside = true
			break
		}
	}
	if !inside {
		return ErrSlotOutsideSchedule
	}

	booked, err := r.store.FindAppointments(ctx, doctorID, date, date, InactiveStatuses)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	for _, appt := range booked {
		if appt.Window.Overlaps(window) {
			return ErrSlotConflict
		}
	}
	return nil
}

// ListAvailability yields every declared schedule window for dates in
// [from, to], ordered by date then window start, each flagged with whether it
// is free of active appointments. The sequence is lazy and restartable; a
// store failure surfaces as the second value and ends the walk.
func (r *Resolver) ListAvailability(ctx context.Context, doctorID uuid.UUID, from, to time.Time) iter.Seq2[AvailabilitySlot, error] {
	return func(yield func(AvailabilitySlot, error) bool) {
		doctor, err := r.store.FindDoctorByID(ctx, doctorID)
		if err != nil {
			yield(AvailabilitySlot{}, err)
			return
		}

		for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
			declared := doctor.WindowsOn(date)
			if len(declared) == 0 {
				continue
			}

			booked, err := r.store.FindAppointments(ctx, doctorID, date, date, InactiveStatuses)
			if err != nil {
				yield(AvailabilitySlot{}, fmt.Errorf("load appointments: %w", err))
				return
			}

			for _, window := range declared {
				slot := AvailabilitySlot{Date: date, Window: window, Available: true}
				for _, appt := range booked {
					if appt.Window.Overlaps(window) {
						slot.Available = false
						break
					}
				}
				if !yield(slot, nil) {
					return
				}
			}
		}
	}
}

// BookingRequest carries everything needed to place one appointment.
type BookingRequest struct {
	DoctorID uuid.UUID
	Patient  Patient
	Date     time.Time
	Window   TimeWindow
	Reason   string
	Notes    string
}

// Book validates the slot and inserts a confirmed appointment. The check and
// the insert run inside a per-doctor critical section so two concurrent
// bookings cannot both observe a free slot; the store's conditional insert
// independently rejects any overlap that slips through, so at most one of two
// racing calls ever succeeds.
func (r *Resolver) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	var booked *Appointment

	err := r.locker.WithDoctorLock(ctx, req.DoctorID, func(ctx context.Context) error {
		if err := r.CheckSlot(ctx, req.DoctorID, req.Date, req.Window); err != nil {
			return err
		}

		appt := &Appointment{
			ID:       uuid.New(),
			DoctorID: req.DoctorID,
			Patient:  req.Patient,
			Date:     req.Date,
			Window:   req.Window,
			Reason:   req.Reason,
			Notes:    req.Notes,
			Status:   StatusConfirmed,
		}
		if err := r.store.InsertAppointmentIfNoConflict(ctx, appt); err != nil {
			if errors.Is(err, ErrBookingConflict) {
				return ErrSlotConflict
			}
			return err
		}

		booked = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

// Cancel releases an appointment's window by transitioning it out of its
// current active status. It is a status change, never a delete.
func (r *Resolver) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := r.store.FindAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Active() {
		return appt, nil
	}
	return r.store.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled)
}
