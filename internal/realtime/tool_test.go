package realtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry(testLogger())

	resp := r.Dispatch(context.Background(), ToolCallFrame{
		Type: TypeToolCall,
		ID:   "call-1",
		Name: "no_such_tool",
	})

	if resp.Type != TypeToolResponse {
		t.Errorf("type = %q, want %q", resp.Type, TypeToolResponse)
	}
	if resp.CallID != "call-1" {
		t.Errorf("call_id = %q, want %q", resp.CallID, "call-1")
	}
	content, ok := resp.Content.(errorContent)
	if !ok {
		t.Fatalf("content = %T, want errorContent", resp.Content)
	}
	if content.Error != "Unknown tool" {
		t.Errorf("error = %q, want %q", content.Error, "Unknown tool")
	}
}

func TestDispatchHandlerResult(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"echoed": args["value"]}, nil
		},
	})

	resp := r.Dispatch(context.Background(), ToolCallFrame{
		ID:      "call-2",
		Name:    "echo",
		Content: map[string]any{"value": "hello"},
	})

	if resp.CallID != "call-2" || resp.Name != "echo" {
		t.Errorf("correlation fields = (%q, %q)", resp.CallID, resp.Name)
	}
	result, ok := resp.Content.(map[string]any)
	if !ok || result["echoed"] != "hello" {
		t.Errorf("content = %#v, want echoed hello", resp.Content)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Tool{
		Name: "failing",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("Doctor not found")
		},
	})

	resp := r.Dispatch(context.Background(), ToolCallFrame{ID: "call-3", Name: "failing"})

	content, ok := resp.Content.(errorContent)
	if !ok || content.Error != "Doctor not found" {
		t.Errorf("content = %#v, want error payload", resp.Content)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Tool{
		Name: "exploding",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("boom")
		},
	})

	resp := r.Dispatch(context.Background(), ToolCallFrame{ID: "call-4", Name: "exploding"})

	if resp.CallID != "call-4" {
		t.Errorf("call_id = %q, want %q", resp.CallID, "call-4")
	}
	content, ok := resp.Content.(errorContent)
	if !ok {
		t.Fatalf("content = %T, want errorContent", resp.Content)
	}
	if content.Error != "tool exploding failed unexpectedly" {
		t.Errorf("error = %q", content.Error)
	}
}

func TestCatalogRegistrationOrder(t *testing.T) {
	r := NewRegistry(testLogger())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Register(Tool{Name: name, Parameters: map[string]any{"type": "object"}})
	}

	catalog := r.Catalog()
	if len(catalog) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(catalog))
	}
	for i, want := range []string{"zeta", "alpha", "mid"} {
		if catalog[i].Name != want {
			t.Errorf("catalog[%d] = %q, want %q", i, catalog[i].Name, want)
		}
		if catalog[i].Type != "function" {
			t.Errorf("catalog[%d].Type = %q, want function", i, catalog[i].Type)
		}
	}
}

// newSchedulingFixture builds the registry over a memory store with one
// doctor working Monday 09:00-12:00.
func newSchedulingFixture(t *testing.T) (*Registry, uuid.UUID) {
	t.Helper()
	store := scheduling.NewMemoryStore()
	doctorID := uuid.New()
	store.PutDoctor(scheduling.Doctor{
		ID:             doctorID,
		Name:           "Dr. Sara Mostafa",
		Specialization: "Prosthodontics",
		Availability: []scheduling.DaySchedule{
			{DayOfWeek: 0, Windows: []scheduling.TimeWindow{{Start: 540, End: 720}}},
		},
	})
	resolver := scheduling.NewResolver(store, scheduling.NewLocalLocker())
	return NewSchedulingRegistry(store, resolver, testLogger()), doctorID
}

func dispatchErr(t *testing.T, r *Registry, call ToolCallFrame) string {
	t.Helper()
	resp := r.Dispatch(context.Background(), call)
	content, ok := resp.Content.(errorContent)
	if !ok {
		t.Fatalf("content = %#v, want error payload", resp.Content)
	}
	return content.Error
}

func TestSearchDoctorTool(t *testing.T) {
	r, _ := newSchedulingFixture(t)

	resp := r.Dispatch(context.Background(), ToolCallFrame{
		ID:      "s1",
		Name:    "search_doctor_by_name",
		Content: map[string]any{"name": "Sara"},
	})

	result, ok := resp.Content.(map[string]any)
	if !ok {
		t.Fatalf("content = %T", resp.Content)
	}
	doctors, ok := result["doctors"].([]doctorPayload)
	if !ok || len(doctors) != 1 {
		t.Fatalf("doctors = %#v, want one match", result["doctors"])
	}
	if doctors[0].Name != "Dr. Sara Mostafa" {
		t.Errorf("name = %q", doctors[0].Name)
	}
	if len(doctors[0].Availability) != 1 || len(doctors[0].Availability[0].TimeSlots) != 1 {
		t.Fatalf("availability = %#v", doctors[0].Availability)
	}
	slot := doctors[0].Availability[0].TimeSlots[0]
	if slot.StartTime != "09:00" || slot.EndTime != "12:00" {
		t.Errorf("slot = %s-%s, want 09:00-12:00", slot.StartTime, slot.EndTime)
	}
}

func TestAvailabilityTool(t *testing.T) {
	r, doctorID := newSchedulingFixture(t)

	resp := r.Dispatch(context.Background(), ToolCallFrame{
		ID:   "a1",
		Name: "get_doctor_availability",
		Content: map[string]any{
			"doctor_id": doctorID.String(),
			"date":      "2025-04-07", // Monday
		},
	})
	result, ok := resp.Content.(map[string]any)
	if !ok {
		t.Fatalf("content = %#v", resp.Content)
	}
	slots, ok := result["available_slots"].([]windowPayload)
	if !ok || len(slots) != 1 {
		t.Fatalf("available_slots = %#v", result["available_slots"])
	}

	// A day with no schedule yields the distinct unavailable-day message.
	got := dispatchErr(t, r, ToolCallFrame{
		ID:   "a2",
		Name: "get_doctor_availability",
		Content: map[string]any{
			"doctor_id": doctorID.String(),
			"date":      "2025-04-08", // Tuesday
		},
	})
	if got != "Doctor is not available on day 1" {
		t.Errorf("error = %q", got)
	}
}

func TestBookAppointmentTool(t *testing.T) {
	r, doctorID := newSchedulingFixture(t)

	bookArgs := func(start, end string) map[string]any {
		return map[string]any{
			"doctor_id":        doctorID.String(),
			"patient_email":    "john@example.com",
			"patient_name":     "John",
			"appointment_date": "2025-04-07",
			"start_time":       start,
			"end_time":         end,
		}
	}

	resp := r.Dispatch(context.Background(), ToolCallFrame{
		ID:      "b1",
		Name:    "book_appointment",
		Content: bookArgs("09:00", "09:30"),
	})
	result, ok := resp.Content.(map[string]any)
	if !ok {
		t.Fatalf("content = %#v", resp.Content)
	}
	if result["status"] != "success" {
		t.Errorf("status = %v", result["status"])
	}
	if result["start_time"] != "09:00" || result["end_time"] != "09:30" {
		t.Errorf("window = %v-%v", result["start_time"], result["end_time"])
	}
	if _, err := uuid.Parse(result["appointment_id"].(string)); err != nil {
		t.Errorf("appointment_id not a uuid: %v", err)
	}

	// Failure kinds surface as distinct messages the model can act on.
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "overlap", args: bookArgs("09:15", "09:45"), want: "This time slot is already booked"},
		{name: "outside schedule", args: bookArgs("13:00", "13:30"), want: "Doctor is not available during this time slot"},
		{name: "inverted window", args: bookArgs("10:30", "10:00"), want: "end time 10:00 must be after start time 10:30"},
		{name: "missing email", args: map[string]any{
			"doctor_id":        doctorID.String(),
			"appointment_date": "2025-04-07",
			"start_time":       "10:00",
			"end_time":         "10:30",
		}, want: `missing required argument "patient_email"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dispatchErr(t, r, ToolCallFrame{ID: "b-" + tt.name, Name: "book_appointment", Content: tt.args})
			if got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}

	unknownDoctor := bookArgs("10:00", "10:30")
	unknownDoctor["doctor_id"] = uuid.New().String()
	if got := dispatchErr(t, r, ToolCallFrame{ID: "b-unknown", Name: "book_appointment", Content: unknownDoctor}); got != "Doctor not found" {
		t.Errorf("error = %q, want %q", got, "Doctor not found")
	}

	wednesday := bookArgs("10:00", "10:30")
	wednesday["appointment_date"] = "2025-04-09"
	if got := dispatchErr(t, r, ToolCallFrame{ID: "b-wed", Name: "book_appointment", Content: wednesday}); got != "Doctor is not available on this day" {
		t.Errorf("error = %q, want %q", got, "Doctor is not available on this day")
	}
}

func TestBuildInstructionsListsDoctors(t *testing.T) {
	store := scheduling.NewMemoryStore()
	store.PutDoctor(scheduling.Doctor{
		ID:             uuid.New(),
		Name:           "Dr. Mohamed Ali",
		Specialization: "Endodontics",
		Availability: []scheduling.DaySchedule{
			{DayOfWeek: 3, Windows: []scheduling.TimeWindow{{Start: 600, End: 840}}},
		},
	})

	got, err := BuildInstructions(context.Background(), store)
	if err != nil {
		t.Fatalf("BuildInstructions: %v", err)
	}
	for _, want := range []string{"Dr. Mohamed Ali", "Endodontics", "day 3", "10:00-14:00", "book_appointment"} {
		if !strings.Contains(got, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}
