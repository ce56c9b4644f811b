package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

// newTestRouter wires the management surface over a memory store with one
// doctor working Monday 09:00-12:00 and Wednesday 10:00-14:00.
func newTestRouter(t *testing.T) (http.Handler, uuid.UUID) {
	t.Helper()
	store := scheduling.NewMemoryStore()
	doctorID := uuid.New()
	store.PutDoctor(scheduling.Doctor{
		ID:             doctorID,
		Name:           "Dr. Ahmed Hassan",
		Specialization: "Orthodontics",
		Availability: []scheduling.DaySchedule{
			{DayOfWeek: 0, Windows: []scheduling.TimeWindow{{Start: 540, End: 720}}},
			{DayOfWeek: 2, Windows: []scheduling.TimeWindow{{Start: 600, End: 840}}},
		},
	})
	resolver := scheduling.NewResolver(store, scheduling.NewLocalLocker())

	router := NewRouter(RouterConfig{
		Store:    store,
		Resolver: resolver,
		Env:      "test",
		Version:  "test",
		Log:      zerolog.Nop(),
	})
	return router, doctorID
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func bookingBody(doctorID uuid.UUID, date, start, end string) map[string]any {
	return map[string]any{
		"doctor_id":        doctorID.String(),
		"patient_name":     "John Smith",
		"patient_email":    "john@example.com",
		"appointment_date": date,
		"start_time":       start,
		"end_time":         end,
		"reason":           "tooth pain",
	}
}

func TestListDoctors(t *testing.T) {
	router, doctorID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/doctors", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	doctors := decodeBody[[]DoctorResponse](t, rec)
	if len(doctors) != 1 || doctors[0].ID != doctorID.String() {
		t.Errorf("doctors = %+v", doctors)
	}

	// Search by specialization substring.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/doctors?q=ortho", nil)
	if got := decodeBody[[]DoctorResponse](t, rec); len(got) != 1 {
		t.Errorf("search hit %d doctors, want 1", len(got))
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/doctors?q=cardio", nil)
	if got := decodeBody[[]DoctorResponse](t, rec); len(got) != 0 {
		t.Errorf("search hit %d doctors, want 0", len(got))
	}
}

func TestGetDoctor(t *testing.T) {
	router, doctorID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/doctors/"+doctorID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := decodeBody[DoctorResponse](t, rec)
	if doc.Name != "Dr. Ahmed Hassan" || len(doc.Availability) != 2 {
		t.Errorf("doctor = %+v", doc)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/doctors/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown doctor status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/doctors/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestDoctorAvailability(t *testing.T) {
	router, doctorID := newTestRouter(t)
	base := fmt.Sprintf("/api/v1/doctors/%s/availability", doctorID)

	// 2025-04-07 (Mon) through 2025-04-09 (Wed): one window each working day.
	rec := doJSON(t, router, http.MethodGet, base+"?start_date=2025-04-07&end_date=2025-04-09", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	slots := decodeBody[[]AvailabilitySlotResponse](t, rec)
	if len(slots) != 2 {
		t.Fatalf("slots = %+v, want 2", slots)
	}
	if slots[0].Date != "2025-04-07" || slots[0].StartTime != "09:00" || !slots[0].IsAvailable {
		t.Errorf("slot[0] = %+v", slots[0])
	}
	if slots[1].Date != "2025-04-09" || slots[1].StartTime != "10:00" {
		t.Errorf("slot[1] = %+v", slots[1])
	}

	rec = doJSON(t, router, http.MethodGet, base+"?start_date=2025-04-09&end_date=2025-04-07", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, base+"?start_date=soon&end_date=2025-04-09", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestCreateAppointment(t *testing.T) {
	router, doctorID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", bookingBody(doctorID, "2025-04-07", "09:00", "09:30"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	appt := decodeBody[AppointmentResponse](t, rec)
	if appt.Status != "confirmed" {
		t.Errorf("status = %q, want confirmed", appt.Status)
	}
	if appt.Reason != "tooth pain" {
		t.Errorf("reason = %q, want it persisted", appt.Reason)
	}
	if appt.StartTime != "09:00" || appt.EndTime != "09:30" {
		t.Errorf("window = %s-%s", appt.StartTime, appt.EndTime)
	}

	// The reason survives a round trip through the store.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/appointments/"+appt.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got := decodeBody[AppointmentResponse](t, rec); got.Reason != "tooth pain" {
		t.Errorf("stored reason = %q", got.Reason)
	}
}

func TestCreateAppointmentRejections(t *testing.T) {
	router, doctorID := newTestRouter(t)

	if rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", bookingBody(doctorID, "2025-04-07", "09:00", "09:30")); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", rec.Code)
	}

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{
			name:       "overlapping window",
			body:       bookingBody(doctorID, "2025-04-07", "09:15", "09:45"),
			wantStatus: http.StatusConflict,
			wantError:  "slot_conflict",
		},
		{
			name:       "day without schedule",
			body:       bookingBody(doctorID, "2025-04-08", "09:00", "09:30"),
			wantStatus: http.StatusBadRequest,
			wantError:  "day_unavailable",
		},
		{
			name:       "outside schedule",
			body:       bookingBody(doctorID, "2025-04-07", "13:00", "13:30"),
			wantStatus: http.StatusBadRequest,
			wantError:  "slot_outside_schedule",
		},
		{
			name:       "unknown doctor",
			body:       bookingBody(uuid.New(), "2025-04-07", "10:00", "10:30"),
			wantStatus: http.StatusNotFound,
			wantError:  "doctor_not_found",
		},
		{
			name:       "inverted window",
			body:       bookingBody(doctorID, "2025-04-07", "10:30", "10:00"),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_window",
		},
		{
			name: "missing email",
			body: map[string]any{
				"doctor_id":        doctorID.String(),
				"appointment_date": "2025-04-07",
				"start_time":       "10:00",
				"end_time":         "10:30",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_patient_email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decodeBody[ErrorResponse](t, rec); got.Error != tt.wantError {
				t.Errorf("error = %q, want %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestCancelAppointmentFreesSlot(t *testing.T) {
	router, doctorID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", bookingBody(doctorID, "2025-04-07", "09:00", "09:30"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", rec.Code)
	}
	appt := decodeBody[AppointmentResponse](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decodeBody[AppointmentResponse](t, rec); got.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", got.Status)
	}

	// Cancelling twice is a no-op, not an error.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("second cancel status = %d, want 200", rec.Code)
	}

	// The freed window accepts a new booking.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/appointments", bookingBody(doctorID, "2025-04-07", "09:00", "09:30"))
	if rec.Code != http.StatusCreated {
		t.Errorf("rebooking freed slot status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/appointments/"+uuid.NewString()+"/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown status = %d, want 404", rec.Code)
	}
}

func TestListAppointments(t *testing.T) {
	router, doctorID := newTestRouter(t)

	for _, w := range [][2]string{{"09:00", "09:30"}, {"10:00", "10:30"}} {
		if rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", bookingBody(doctorID, "2025-04-07", w[0], w[1])); rec.Code != http.StatusCreated {
			t.Fatalf("booking %s failed: %d", w[0], rec.Code)
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/appointments?doctor_id="+doctorID.String()+"&start_date=2025-04-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	appts := decodeBody[[]AppointmentResponse](t, rec)
	if len(appts) != 2 {
		t.Fatalf("appointments = %d, want 2", len(appts))
	}
	if appts[0].StartTime != "09:00" || appts[1].StartTime != "10:00" {
		t.Errorf("order = %s, %s", appts[0].StartTime, appts[1].StartTime)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/appointments?doctor_id="+doctorID.String()+"&start_date=2025-04-14", nil)
	if got := decodeBody[[]AppointmentResponse](t, rec); len(got) != 0 {
		t.Errorf("other week appointments = %d, want 0", len(got))
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/appointments?start_date=2025-04-07", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing doctor_id status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/health", "/health/live", "/health/ready"} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
