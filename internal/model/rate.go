package model

import "time"

// RateConfig is the single shared hourly rate used to price new bookings.
// Changing it never touches existing appointments.
type RateConfig struct {
	HourlyRate float64   `json:"hourly_rate"`
	UpdatedAt  time.Time `json:"updated_at"`
}
