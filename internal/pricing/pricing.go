package pricing

import (
	"errors"
	"math"
)

var (
	ErrInvalidTimeFormat   = errors.New("invalid time format, expected HH:MM")
	ErrNonPositiveDuration = errors.New("end time must be after start time")
	ErrInvalidRate         = errors.New("hourly rate must be a positive number")
)

// Quote is the priced duration for a requested time range. Total keeps full
// precision; rounding is a presentation concern.
type Quote struct {
	Hours float64 `json:"hours"`
	Total float64 `json:"total"`
}

// ComputeBooking turns a same-day wall-clock range and an hourly rate into a
// priced duration. The rate is passed in by the caller so a booking's price
// reflects the rate in effect at booking time. Overnight ranges are not
// supported: the end time must be later on the same day.
func ComputeBooking(start, end string, rate float64) (Quote, error) {
	if err := ValidateRate(rate); err != nil {
		return Quote{}, err
	}
	startMin, err := parseClock(start)
	if err != nil {
		return Quote{}, err
	}
	endMin, err := parseClock(end)
	if err != nil {
		return Quote{}, err
	}
	if endMin <= startMin {
		return Quote{}, ErrNonPositiveDuration
	}
	hours := float64(endMin-startMin) / 60.0
	return Quote{Hours: hours, Total: hours * rate}, nil
}

// ValidateRate checks that a proposed hourly rate is a positive finite number.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return ErrInvalidRate
	}
	return nil
}

// parseClock parses a strict 24-hour "HH:MM" value into minutes since
// midnight. Anything but two digits, a colon and two digits is rejected.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidTimeFormat
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidTimeFormat
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, ErrInvalidTimeFormat
	}
	return hour*60 + minute, nil
}
