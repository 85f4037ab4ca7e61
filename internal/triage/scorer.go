// Package triage ranks technicians for a pending ticket.
//
// The reference formula is
//
//	score = weight*1000 - remainingMinutes - workload*10
//
// so priority dominates, a closer SLA deadline raises the score and a heavier
// workload lowers it. Ranking prefers the highest score, then the lightest
// workload, then input order.
package triage

import (
	"fmt"
	"sort"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/sla"
)

const (
	priorityFactor = 1000
	workloadFactor = 10
)

// PriorityWeight maps a ticket priority onto its scoring weight.
func PriorityWeight(p domain.TicketPriority) int {
	switch p {
	case domain.TicketPriorityCritical:
		return 4
	case domain.TicketPriorityHigh:
		return 3
	case domain.TicketPriorityMedium:
		return 2
	case domain.TicketPriorityLow:
		return 1
	}
	return 2
}

// Score applies the assignment formula.
func Score(weight, remainingMinutes, workload int) int {
	return weight*priorityFactor - remainingMinutes - workload*workloadFactor
}

// Eligible keeps the available technicians holding at least one required
// specialty, preserving their order.
func Eligible(technicians []domain.Technician, required []int64) []domain.Technician {
	out := make([]domain.Technician, 0, len(technicians))
	for _, tech := range technicians {
		if tech.Availability != domain.AvailabilityAvailable {
			continue
		}
		if !tech.HasAnySpecialty(required) {
			continue
		}
		out = append(out, tech)
	}
	return out
}

// Input is everything the scorer needs for one ticket.
type Input struct {
	Ticket              domain.Ticket
	SLA                 domain.SLA
	Now                 time.Time
	Technicians         []domain.Technician
	RequiredSpecialties []int64
	Criterion           domain.AssignmentCriterion
}

// Candidate is a scored technician.
type Candidate struct {
	Technician domain.Technician
	Score      int
	Matches    int
	position   int
}

// Selection is the chosen technician with the figures that produced the choice.
type Selection struct {
	Technician       domain.Technician
	Score            int
	PriorityWeight   int
	RemainingMinutes int
	Criterion        domain.AssignmentCriterion
	Rationale        string
}

// Scorer ranks candidates. With honorCriterion unset every category uses the
// reference formula regardless of its configured criterion.
type Scorer struct {
	honorCriterion bool
}

// NewScorer builds a Scorer.
func NewScorer(honorCriterion bool) *Scorer {
	return &Scorer{honorCriterion: honorCriterion}
}

// Criterion returns the strategy label actually applied for requested.
func (s *Scorer) Criterion(requested domain.AssignmentCriterion) domain.AssignmentCriterion {
	if !s.honorCriterion {
		return domain.CriterionPriorityScore
	}
	if _, ok := strategies[requested]; !ok {
		return domain.CriterionPriorityScore
	}
	return requested
}

// Rank scores every technician in in.Technicians, best first. Callers filter
// with Eligible beforehand.
func (s *Scorer) Rank(in Input) []Candidate {
	weight := PriorityWeight(in.Ticket.Priority)
	remaining := sla.NewClock(in.Ticket.CreatedAt, in.SLA).RemainingMinutes(in.Now)

	candidates := make([]Candidate, len(in.Technicians))
	for i, tech := range in.Technicians {
		candidates[i] = Candidate{
			Technician: tech,
			Score:      Score(weight, remaining, tech.Workload),
			Matches:    tech.MatchingSpecialties(in.RequiredSpecialties),
			position:   i,
		}
	}

	less := strategies[s.Criterion(in.Criterion)]
	sort.SliceStable(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})
	return candidates
}

// Select returns the best candidate. ok is false when there is none.
func (s *Scorer) Select(in Input) (Selection, bool) {
	ranked := s.Rank(in)
	if len(ranked) == 0 {
		return Selection{}, false
	}
	best := ranked[0]
	weight := PriorityWeight(in.Ticket.Priority)
	remaining := sla.NewClock(in.Ticket.CreatedAt, in.SLA).RemainingMinutes(in.Now)
	criterion := s.Criterion(in.Criterion)

	return Selection{
		Technician:       best.Technician,
		Score:            best.Score,
		PriorityWeight:   weight,
		RemainingMinutes: remaining,
		Criterion:        criterion,
		Rationale:        Rationale(in.Ticket.Priority, weight, remaining, best.Technician.Workload, best.Score, criterion),
	}, true
}

// Rationale renders the human readable explanation stored with an assignment.
func Rationale(priority domain.TicketPriority, weight, remaining, workload, score int, criterion domain.AssignmentCriterion) string {
	return fmt.Sprintf(
		"priority %s (weight %d), %d minutes of SLA remaining, technician workload %d, final score %d [%s]",
		priority, weight, remaining, workload, score, criterion,
	)
}
