package api

import (
	"time"

	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

type TimeWindowResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type DayScheduleResponse struct {
	DayOfWeek int                  `json:"day_of_week"`
	TimeSlots []TimeWindowResponse `json:"time_slots"`
}

type DoctorResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Specialization string                `json:"specialization"`
	Availability   []DayScheduleResponse `json:"availability"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newDoctorResponse(d scheduling.Doctor) DoctorResponse {
	resp := DoctorResponse{
		ID:             d.ID.String(),
		Name:           d.Name,
		Specialization: d.Specialization,
		Availability:   make([]DayScheduleResponse, 0, len(d.Availability)),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, day := range d.Availability {
		ds := DayScheduleResponse{DayOfWeek: day.DayOfWeek}
		for _, w := range day.Windows {
			ds.TimeSlots = append(ds.TimeSlots, TimeWindowResponse{
				StartTime: w.StartClock(),
				EndTime:   w.EndClock(),
			})
		}
		resp.Availability = append(resp.Availability, ds)
	}
	return resp
}

type CreateAppointmentRequest struct {
	DoctorID        string `json:"doctor_id"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	PatientPhone    string `json:"patient_phone"`
	AppointmentDate string `json:"appointment_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Reason          string `json:"reason"`
}

type AppointmentResponse struct {
	ID              string    `json:"id"`
	DoctorID        string    `json:"doctor_id"`
	PatientName     string    `json:"patient_name,omitempty"`
	PatientEmail    string    `json:"patient_email"`
	PatientPhone    string    `json:"patient_phone,omitempty"`
	AppointmentDate string    `json:"appointment_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Reason          string    `json:"reason,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID.String(),
		DoctorID:        a.DoctorID.String(),
		PatientName:     a.Patient.Name,
		PatientEmail:    a.Patient.Email,
		PatientPhone:    a.Patient.Phone,
		AppointmentDate: a.Date.Format(scheduling.DateLayout),
		StartTime:       a.Window.StartClock(),
		EndTime:         a.Window.EndClock(),
		Reason:          a.Reason,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type AvailabilitySlotResponse struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
