package model

import "time"

// Appointment is an immutable record of a booked lesson. Hours and Total are
// computed once at booking time and never recomputed; StudentName and
// StudentEmail are a contact snapshot taken at booking time, deliberately
// independent of the user record.
type Appointment struct {
	ID           int64     `json:"id"`
	StudentID    *int64    `json:"student_id"` // pointer - may be nil
	TeacherID    int64     `json:"teacher_id"`
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"` // HH:MM
	EndTime      string    `json:"end_time"`   // HH:MM
	Hours        float64   `json:"hours"`
	Total        float64   `json:"total"`
	CreatedAt    time.Time `json:"created_at"`
}
