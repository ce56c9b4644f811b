package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// InactiveStatuses are the statuses that free a time window: appointments in
// these states never count toward conflict checks.
var InactiveStatuses = []AppointmentStatus{StatusCancelled, StatusNoShow}

// TimeWindow is a half-open interval [Start, End) within one day, expressed
// in minutes from midnight. End must be strictly greater than Start.
type TimeWindow struct {
	Start int `json:"start_min"`
	End   int `json:"end_min"`
}

// ParseTimeWindow builds a window from "HH:MM" or "HH:MM:SS" clock strings.
func ParseTimeWindow(start, end string) (TimeWindow, error) {
	s, err := parseClock(start)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("parse start time: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("parse end time: %w", err)
	}
	w := TimeWindow{Start: s, End: e}
	if !w.Valid() {
		return TimeWindow{}, fmt.Errorf("end time %s must be after start time %s", end, start)
	}
	return w, nil
}

func parseClock(s string) (int, error) {
	var t time.Time
	var err error
	switch len(s) {
	case len("15:04"):
		t, err = time.Parse("15:04", s)
	default:
		t, err = time.Parse("15:04:05", s)
	}
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w TimeWindow) Valid() bool {
	return w.Start >= 0 && w.End <= 24*60 && w.End > w.Start
}

// Overlaps reports whether two windows intersect. Touching endpoints do not
// overlap: [9:00,9:30) and [9:30,10:00) are adjacent, not conflicting.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start < other.End && other.Start < w.End
}

// Contains reports whether other lies fully inside w, endpoints included.
func (w TimeWindow) Contains(other TimeWindow) bool {
	return other.Start >= w.Start && other.End <= w.End
}

func (w TimeWindow) StartClock() string { return clockString(w.Start) }
func (w TimeWindow) EndClock() string   { return clockString(w.End) }

func (w TimeWindow) String() string {
	return w.StartClock() + "-" + w.EndClock()
}

func clockString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DateLayout is the wire format for appointment dates.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO date and truncates it to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// WeekdayIndex maps a date to the schedule convention Monday=0 .. Sunday=6.
func WeekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// DaySchedule declares the bookable windows for one weekday.
type DaySchedule struct {
	DayOfWeek int          `json:"day_of_week"` // Monday=0 .. Sunday=6
	Windows   []TimeWindow `json:"time_slots"`
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	Availability   []DaySchedule
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WindowsOn returns the declared windows for the weekday of date, or nil if
// the doctor has no schedule entry for that day.
func (d *Doctor) WindowsOn(date time.Time) []TimeWindow {
	day := WeekdayIndex(date)
	var windows []TimeWindow
	for _, s := range d.Availability {
		if s.DayOfWeek == day {
			windows = append(windows, s.Windows...)
		}
	}
	return windows
}

// Patient identifies who an appointment is for. Only the email is required;
// the voice agent often has nothing else.
type Patient struct {
	Name  string
	Email string
	Phone string
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID // non-owning reference, resolved on demand
	Patient   Patient
	Date      time.Time // midnight UTC of the appointment day
	Window    TimeWindow
	Reason    string
	Notes     string
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the appointment still occupies its window.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled && a.Status != StatusNoShow
}

// AvailabilitySlot is one declared schedule window on a concrete date,
// flagged with whether it is free of active appointments.
type AvailabilitySlot struct {
	Date      time.Time
	Window    TimeWindow
	Available bool
}
