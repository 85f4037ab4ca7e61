package triage

import "github.com/deskflow/helpdesk-service/internal/domain"

type lessFunc func(a, b Candidate) bool

var strategies = map[domain.AssignmentCriterion]lessFunc{
	domain.CriterionPriorityScore:       byScore,
	domain.CriterionSLARemaining:        byScore,
	domain.CriterionLeastLoad:           byWorkload,
	domain.CriterionBestRated:           byRating,
	domain.CriterionSpecialistAvailable: bySpecialtyMatch,
}

func byScore(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Technician.Workload != b.Technician.Workload {
		return a.Technician.Workload < b.Technician.Workload
	}
	return a.position < b.position
}

func byWorkload(a, b Candidate) bool {
	if a.Technician.Workload != b.Technician.Workload {
		return a.Technician.Workload < b.Technician.Workload
	}
	return byScore(a, b)
}

func byRating(a, b Candidate) bool {
	if a.Technician.AverageRating != b.Technician.AverageRating {
		return a.Technician.AverageRating > b.Technician.AverageRating
	}
	return byScore(a, b)
}

// bySpecialtyMatch prefers technicians covering more of the required specialties.
func bySpecialtyMatch(a, b Candidate) bool {
	if a.Matches != b.Matches {
		return a.Matches > b.Matches
	}
	return byScore(a, b)
}
