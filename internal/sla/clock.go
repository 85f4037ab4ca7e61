// Package sla computes service level deadlines and compliance stamps for tickets.
//
// Everything here is pure: callers pass the instant they consider "now". Stamps
// are first-write-wins so a milestone recorded once is never rewritten.
package sla

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// Clock measures a ticket against the budgets of one SLA.
type Clock struct {
	CreatedAt  time.Time
	Response   time.Duration
	Resolution time.Duration
}

// NewClock builds a Clock for a ticket created at createdAt under policy.
func NewClock(createdAt time.Time, policy domain.SLA) Clock {
	return Clock{
		CreatedAt:  createdAt,
		Response:   time.Duration(policy.ResponseMinutes) * time.Minute,
		Resolution: time.Duration(policy.ResolutionMinutes) * time.Minute,
	}
}

// ResponseDeadline is the latest acceptable first response.
func (c Clock) ResponseDeadline() time.Time {
	return c.CreatedAt.Add(c.Response)
}

// ResolutionDeadline is the latest acceptable resolution.
func (c Clock) ResolutionDeadline() time.Time {
	return c.CreatedAt.Add(c.Resolution)
}

// ResponseMet reports whether a first response at at is within budget.
func (c Clock) ResponseMet(at time.Time) bool {
	return !at.After(c.ResponseDeadline())
}

// ResolutionMet reports whether a resolution at at is within budget.
func (c Clock) ResolutionMet(at time.Time) bool {
	return !at.After(c.ResolutionDeadline())
}

// RemainingMinutes returns whole minutes left before the resolution deadline.
// It is never negative: an expired ticket reports 0.
func (c Clock) RemainingMinutes(now time.Time) int {
	left := c.ResolutionDeadline().Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Minute)
}

// StampFirstResponse records the first response and its compliance flag.
// It returns false without touching the ticket when a response is already recorded.
func (c Clock) StampFirstResponse(t *domain.Ticket, at time.Time) bool {
	if t.FirstResponseAt != nil {
		return false
	}
	stamped := at
	met := c.ResponseMet(at)
	t.FirstResponseAt = &stamped
	if t.ResponseCompliant == nil {
		t.ResponseCompliant = &met
	}
	return true
}

// StampResolution records the resolution and its compliance flag.
// It returns false without touching the ticket when a resolution is already recorded.
func (c Clock) StampResolution(t *domain.Ticket, at time.Time) bool {
	if t.ResolvedAt != nil {
		return false
	}
	stamped := at
	met := c.ResolutionMet(at)
	t.ResolvedAt = &stamped
	if t.ResolutionCompliant == nil {
		t.ResolutionCompliant = &met
	}
	return true
}

// StampClosure records the closure time once.
func StampClosure(t *domain.Ticket, at time.Time) bool {
	if t.ClosedAt != nil {
		return false
	}
	stamped := at
	t.ClosedAt = &stamped
	return true
}

// Report summarizes where a ticket stands against its SLA.
type Report struct {
	ResponseDeadline    time.Time
	ResolutionDeadline  time.Time
	RemainingMinutes    int
	Breached            bool
	ResponseCompliant   *bool
	ResolutionCompliant *bool
}

// Status reports the SLA position of t at now. A resolved ticket is judged by
// its recorded resolution rather than by now.
func (c Clock) Status(t *domain.Ticket, now time.Time) Report {
	report := Report{
		ResponseDeadline:    c.ResponseDeadline(),
		ResolutionDeadline:  c.ResolutionDeadline(),
		RemainingMinutes:    c.RemainingMinutes(now),
		ResponseCompliant:   t.ResponseCompliant,
		ResolutionCompliant: t.ResolutionCompliant,
	}
	switch {
	case t.ResolutionCompliant != nil:
		report.Breached = !*t.ResolutionCompliant
	case t.ResponseCompliant != nil && !*t.ResponseCompliant:
		report.Breached = true
	default:
		report.Breached = now.After(c.ResolutionDeadline())
	}
	return report
}
