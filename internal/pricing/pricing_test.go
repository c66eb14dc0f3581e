package pricing

import (
	"errors"
	"math"
	"testing"
)

func TestComputeBooking(t *testing.T) {
	cases := []struct {
		name  string
		start string
		end   string
		rate  float64
		hours float64
		total float64
	}{
		{"ninety minutes", "09:00", "10:30", 50.0, 1.5, 75.0},
		{"one hour", "10:00", "11:00", 60.0, 1.0, 60.0},
		{"quarter hour", "23:00", "23:15", 80.0, 0.25, 20.0},
		{"full day span", "00:00", "23:59", 10.0, 1439.0 / 60.0, 1439.0 / 6.0},
		{"fractional rate", "08:30", "09:00", 33.5, 0.5, 16.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := ComputeBooking(tc.start, tc.end, tc.rate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if quote.Hours != tc.hours {
				t.Fatalf("expected hours %v, got %v", tc.hours, quote.Hours)
			}
			if math.Abs(quote.Total-tc.total) > 1e-9 {
				t.Fatalf("expected total %v, got %v", tc.total, quote.Total)
			}
		})
	}
}

func TestComputeBookingNonPositiveDuration(t *testing.T) {
	cases := []struct {
		start string
		end   string
	}{
		{"14:00", "14:00"},
		{"15:00", "14:00"},
		{"23:59", "00:00"},
	}
	for _, tc := range cases {
		if _, err := ComputeBooking(tc.start, tc.end, 80.0); !errors.Is(err, ErrNonPositiveDuration) {
			t.Fatalf("%s-%s: expected ErrNonPositiveDuration, got %v", tc.start, tc.end, err)
		}
	}
}

func TestComputeBookingMalformedTimes(t *testing.T) {
	bad := []string{
		"",
		"9:00",
		"09:0",
		"009:00",
		"09-00",
		"ab:cd",
		"24:00",
		"09:60",
		"-1:30",
		"09:00 ",
		"0900",
	}
	for _, input := range bad {
		if _, err := ComputeBooking(input, "10:00", 50.0); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("start %q: expected ErrInvalidTimeFormat, got %v", input, err)
		}
		if _, err := ComputeBooking("08:00", input, 50.0); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("end %q: expected ErrInvalidTimeFormat, got %v", input, err)
		}
	}
}

func TestValidateRate(t *testing.T) {
	for _, rate := range []float64{50.0, 0.01, 1e6} {
		if err := ValidateRate(rate); err != nil {
			t.Fatalf("expected rate %v to be valid, got %v", rate, err)
		}
	}
	for _, rate := range []float64{0, -1, -50.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := ValidateRate(rate); !errors.Is(err, ErrInvalidRate) {
			t.Fatalf("expected rate %v to be invalid, got %v", rate, err)
		}
	}
}

func TestComputeBookingRejectsBadRate(t *testing.T) {
	if _, err := ComputeBooking("09:00", "10:00", 0); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}
