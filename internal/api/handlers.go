package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

func listDoctorsHandler(store scheduling.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			doctors []scheduling.Doctor
			err     error
		)
		if q := r.URL.Query().Get("q"); q != "" {
			doctors, err = store.SearchDoctors(r.Context(), q)
		} else {
			doctors, err = store.ListDoctors(r.Context())
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, newDoctorResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(store scheduling.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_doctor_id", "id must be a valid UUID")
		if !ok {
			return
		}

		doctor, err := store.FindDoctorByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, newDoctorResponse(*doctor))
	}
}

func doctorAvailabilityHandler(resolver *scheduling.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_doctor_id", "id must be a valid UUID")
		if !ok {
			return
		}

		from, err := scheduling.ParseDate(r.URL.Query().Get("start_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
			return
		}
		to, err := scheduling.ParseDate(r.URL.Query().Get("end_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "invalid_range", "end_date must not be before start_date")
			return
		}

		slots := make([]AvailabilitySlotResponse, 0)
		for slot, err := range resolver.ListAvailability(r.Context(), id, from, to) {
			if err != nil {
				if errors.Is(err, scheduling.ErrDoctorNotFound) {
					writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			slots = append(slots, AvailabilitySlotResponse{
				Date:        slot.Date.Format(scheduling.DateLayout),
				StartTime:   slot.Window.StartClock(),
				EndTime:     slot.Window.EndClock(),
				IsAvailable: slot.Available,
			})
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

// createAppointmentHandler is the management path for booking. It goes
// through the same resolver as the voice booking tool, so the two paths can
// never disagree on what is a valid appointment.
func createAppointmentHandler(resolver *scheduling.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if req.PatientEmail == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_email", "patient_email is required")
			return
		}
		date, err := scheduling.ParseDate(req.AppointmentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "appointment_date must be YYYY-MM-DD")
			return
		}
		window, err := scheduling.ParseTimeWindow(req.StartTime, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
			return
		}

		appt, err := resolver.Book(r.Context(), scheduling.BookingRequest{
			DoctorID: doctorID,
			Patient: scheduling.Patient{
				Name:  req.PatientName,
				Email: req.PatientEmail,
				Phone: req.PatientPhone,
			},
			Date:   date,
			Window: window,
			Reason: req.Reason,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(store scheduling.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id query parameter is required and must be a valid UUID")
			return
		}
		from, err := scheduling.ParseDate(r.URL.Query().Get("start_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
			return
		}
		to := from
		if s := r.URL.Query().Get("end_date"); s != "" {
			if to, err = scheduling.ParseDate(s); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
				return
			}
		}

		appts, err := store.FindAppointments(r.Context(), doctorID, from, to, nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, newAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(store scheduling.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id", "id must be a valid UUID")
		if !ok {
			return
		}

		appt, err := store.FindAppointmentByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(*appt))
	}
}

// cancelAppointmentHandler transitions an appointment to cancelled, freeing
// its window. Appointments are never deleted.
func cancelAppointmentHandler(resolver *scheduling.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id", "id must be a valid UUID")
		if !ok {
			return
		}

		appt, err := resolver.Cancel(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(*appt))
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDayUnavailable):
		writeError(w, http.StatusBadRequest, "day_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotOutsideSchedule):
		writeError(w, http.StatusBadRequest, "slot_outside_schedule", err.Error())
	case errors.Is(err, scheduling.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, scheduling.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, code, details string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, details)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
