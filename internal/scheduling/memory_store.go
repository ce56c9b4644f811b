package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and by dev mode when no
// Postgres DSN is configured. A single mutex covers every operation, which
// makes InsertAppointmentIfNoConflict trivially atomic.
type MemoryStore struct {
	mu           sync.RWMutex
	doctors      map[uuid.UUID]Doctor
	appointments map[uuid.UUID]Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:      make(map[uuid.UUID]Doctor),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// PutDoctor inserts or replaces a doctor record. Doctors are managed by the
// CRUD surface and the seeder; the gateway only reads them.
func (s *MemoryStore) PutDoctor(doc Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = time.Now().UTC()
	s.doctors[doc.ID] = doc
}

func (s *MemoryStore) FindDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) SearchDoctors(ctx context.Context, text string) ([]Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	var out []Doctor
	for _, doc := range s.doctors {
		if strings.Contains(strings.ToLower(doc.Name), needle) ||
			strings.Contains(strings.ToLower(doc.Specialization), needle) {
			out = append(out, doc)
		}
	}
	sortDoctors(out)
	return out, nil
}

func (s *MemoryStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Doctor, 0, len(s.doctors))
	for _, doc := range s.doctors {
		out = append(out, doc)
	}
	sortDoctors(out)
	return out, nil
}

func sortDoctors(docs []Doctor) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
}

func (s *MemoryStore) FindAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &appt, nil
}

func (s *MemoryStore) FindAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excluded []AppointmentStatus) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Appointment
	for _, appt := range s.appointments {
		if appt.DoctorID != doctorID {
			continue
		}
		if appt.Date.Before(from) || appt.Date.After(to) {
			continue
		}
		if statusIn(appt.Status, excluded) {
			continue
		}
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Window.Start < out[j].Window.Start
	})
	return out, nil
}

func (s *MemoryStore) InsertAppointmentIfNoConflict(ctx context.Context, appt *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.appointments {
		if existing.DoctorID != appt.DoctorID || !existing.Date.Equal(appt.Date) {
			continue
		}
		if existing.Active() && existing.Window.Overlaps(appt.Window) {
			return ErrBookingConflict
		}
	}

	now := time.Now().UTC()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now
	s.appointments[appt.ID] = *appt
	return nil
}

func (s *MemoryStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	appt.Status = to
	appt.UpdatedAt = time.Now().UTC()
	s.appointments[id] = appt
	return &appt, nil
}

func statusIn(status AppointmentStatus, set []AppointmentStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

var _ Store = (*MemoryStore)(nil)
