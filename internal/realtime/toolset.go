package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

// NewSchedulingRegistry builds the fixed tool set the voice agent uses to
// search doctors, inspect schedules and book appointments. All booking goes
// through the resolver, the same validation path as the management API.
func NewSchedulingRegistry(store scheduling.Store, resolver *scheduling.Resolver, log zerolog.Logger) *Registry {
	r := NewRegistry(log)

	r.Register(Tool{
		Name:        "search_doctor_by_name",
		Description: "Search for doctors by name or specialization.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The name or specialization the patient is looking for",
				},
			},
			"required": []string{"name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			name, err := stringArg(args, "name")
			if err != nil {
				return nil, err
			}
			doctors, err := store.SearchDoctors(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("search doctors: %w", err)
			}
			results := make([]doctorPayload, 0, len(doctors))
			for _, d := range doctors {
				results = append(results, newDoctorPayload(d))
			}
			return map[string]any{"doctors": results}, nil
		},
	})

	r.Register(Tool{
		Name:        "get_doctor_availability",
		Description: "Show a doctor's schedule for a specific day.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"doctor_id": map[string]any{"type": "string"},
				"date":      map[string]any{"type": "string", "format": "date"},
			},
			"required": []string{"doctor_id", "date"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			doctorID, err := uuidArg(args, "doctor_id")
			if err != nil {
				return nil, err
			}
			date, err := dateArg(args, "date")
			if err != nil {
				return nil, err
			}

			doctor, err := store.FindDoctorByID(ctx, doctorID)
			if err != nil {
				if errors.Is(err, scheduling.ErrDoctorNotFound) {
					return nil, errors.New("Doctor not found")
				}
				return nil, fmt.Errorf("load doctor: %w", err)
			}

			windows := doctor.WindowsOn(date)
			if len(windows) == 0 {
				return nil, fmt.Errorf("Doctor is not available on day %d", scheduling.WeekdayIndex(date))
			}

			slots := make([]windowPayload, 0, len(windows))
			for _, w := range windows {
				slots = append(slots, newWindowPayload(w))
			}
			return map[string]any{"available_slots": slots}, nil
		},
	})

	r.Register(Tool{
		Name:        "book_appointment",
		Description: "Book an appointment after the patient confirms.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"doctor_id":        map[string]any{"type": "string"},
				"patient_email":    map[string]any{"type": "string"},
				"patient_name":     map[string]any{"type": "string"},
				"appointment_date": map[string]any{"type": "string", "format": "date"},
				"start_time":       map[string]any{"type": "string", "format": "time"},
				"end_time":         map[string]any{"type": "string", "format": "time"},
				"reason":           map[string]any{"type": "string", "description": "Why the patient wants the visit"},
			},
			"required": []string{"doctor_id", "patient_email", "appointment_date", "start_time", "end_time"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			doctorID, err := uuidArg(args, "doctor_id")
			if err != nil {
				return nil, err
			}
			email, err := stringArg(args, "patient_email")
			if err != nil {
				return nil, err
			}
			date, err := dateArg(args, "appointment_date")
			if err != nil {
				return nil, err
			}
			start, err := stringArg(args, "start_time")
			if err != nil {
				return nil, err
			}
			end, err := stringArg(args, "end_time")
			if err != nil {
				return nil, err
			}
			window, err := scheduling.ParseTimeWindow(start, end)
			if err != nil {
				return nil, err
			}

			patient := scheduling.Patient{Email: email}
			patient.Name, _ = optionalStringArg(args, "patient_name")
			reason, _ := optionalStringArg(args, "reason")

			appt, err := resolver.Book(ctx, scheduling.BookingRequest{
				DoctorID: doctorID,
				Patient:  patient,
				Date:     date,
				Window:   window,
				Reason:   reason,
			})
			if err != nil {
				return nil, bookingError(err)
			}

			return map[string]any{
				"status":         "success",
				"message":        "Appointment booked successfully",
				"appointment_id": appt.ID.String(),
				"date":           appt.Date.Format(scheduling.DateLayout),
				"start_time":     appt.Window.StartClock(),
				"end_time":       appt.Window.EndClock(),
			}, nil
		},
	})

	return r
}

// bookingError translates each booking failure kind into the distinct message
// the model reacts to; a generic string would leave it unable to suggest an
// alternative doctor versus an alternative time.
func bookingError(err error) error {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		return errors.New("Doctor not found")
	case errors.Is(err, scheduling.ErrDayUnavailable):
		return errors.New("Doctor is not available on this day")
	case errors.Is(err, scheduling.ErrSlotOutsideSchedule):
		return errors.New("Doctor is not available during this time slot")
	case errors.Is(err, scheduling.ErrSlotConflict):
		return errors.New("This time slot is already booked")
	case errors.Is(err, scheduling.ErrInvalidWindow):
		return errors.New("Appointment end time must be after start time")
	default:
		return err
	}
}

// BuildInstructions assembles the agent's system instructions from current
// store data, so every session starts from live schedules rather than a
// snapshot frozen at process start.
func BuildInstructions(ctx context.Context, store scheduling.Store) (string, error) {
	doctors, err := store.ListDoctors(ctx)
	if err != nil {
		return "", fmt.Errorf("list doctors: %w", err)
	}

	var b strings.Builder
	b.WriteString(`You are a friendly medical assistant that helps patients book appointments.
Your core tasks:
- Understand which doctor the patient wants and their preferred date and time.
- Use search_doctor_by_name to find doctors, get_doctor_availability to show schedules.
- When a time is free, present the options and ask the patient to confirm.
- Only after the patient confirms, book the appointment with book_appointment.
- If the doctor or time is unavailable, suggest other doctors or other days.
- Be warm and empathetic, especially with anxious patients.
- Only ever book slots that the tools report as available.

Current doctors:
`)
	for _, d := range doctors {
		fmt.Fprintf(&b, "- %s (%s), id %s, available:", d.Name, d.Specialization, d.ID)
		if len(d.Availability) == 0 {
			b.WriteString(" no schedule on file")
		}
		for _, day := range d.Availability {
			fmt.Fprintf(&b, " day %d:", day.DayOfWeek)
			for i, w := range day.Windows {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, " %s", w)
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Argument decoding helpers. Tool arguments arrive as a generic JSON object;
// each tool states its schema but the model is not guaranteed to honor it.

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok && s != ""
}

func uuidArg(args map[string]any, key string) (uuid.UUID, error) {
	s, err := stringArg(args, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("argument %q must be a valid doctor id", key)
	}
	return id, nil
}

func dateArg(args map[string]any, key string) (time.Time, error) {
	s, err := stringArg(args, key)
	if err != nil {
		return time.Time{}, err
	}
	date, err := scheduling.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("argument %q must be a date in the form YYYY-MM-DD", key)
	}
	return date, nil
}

// Wire payloads shared by the tool handlers.

type windowPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func newWindowPayload(w scheduling.TimeWindow) windowPayload {
	return windowPayload{StartTime: w.StartClock(), EndTime: w.EndClock()}
}

type dayPayload struct {
	DayOfWeek int             `json:"day_of_week"`
	TimeSlots []windowPayload `json:"time_slots"`
}

type doctorPayload struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Specialization string       `json:"specialization"`
	Availability   []dayPayload `json:"availability"`
}

func newDoctorPayload(d scheduling.Doctor) doctorPayload {
	p := doctorPayload{
		ID:             d.ID.String(),
		Name:           d.Name,
		Specialization: d.Specialization,
		Availability:   make([]dayPayload, 0, len(d.Availability)),
	}
	for _, day := range d.Availability {
		dp := dayPayload{DayOfWeek: day.DayOfWeek}
		for _, w := range day.Windows {
			dp.TimeSlots = append(dp.TimeSlots, newWindowPayload(w))
		}
		p.Availability = append(p.Availability, dp)
	}
	return p
}
