package domain

import (
	"fmt"
	"strings"
	"time"
)

// Availability tells whether a technician may receive new tickets.
type Availability string

const (
	AvailabilityAvailable   Availability = "AVAILABLE"
	AvailabilityUnavailable Availability = "UNAVAILABLE"
)

// ParseAvailability normalizes user input into an Availability.
func ParseAvailability(raw string) (Availability, error) {
	a := Availability(strings.ToUpper(strings.TrimSpace(raw)))
	switch a {
	case AvailabilityAvailable, AvailabilityUnavailable:
		return a, nil
	}
	return "", fmt.Errorf("unknown availability %q", raw)
}

// Technician models a support agent who can be assigned tickets.
type Technician struct {
	ID            int64
	UserID        int64
	Name          string
	Workload      int
	Availability  Availability
	AverageRating float64
	SpecialtyIDs  []int64
	Version       int64
	UpdatedAt     time.Time
}

// HasAnySpecialty reports whether the technician holds at least one of required.
func (t *Technician) HasAnySpecialty(required []int64) bool {
	for _, have := range t.SpecialtyIDs {
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}

// MatchingSpecialties counts how many of required the technician holds.
func (t *Technician) MatchingSpecialties(required []int64) int {
	count := 0
	for _, want := range required {
		for _, have := range t.SpecialtyIDs {
			if have == want {
				count++
				break
			}
		}
	}
	return count
}
