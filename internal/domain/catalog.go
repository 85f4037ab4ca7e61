package domain

// SLA is a named pair of time budgets attached to a category.
type SLA struct {
	ID                int64
	Name              string
	ResponseMinutes   int
	ResolutionMinutes int
	Active            bool
}

// AssignmentCriterion is the triage strategy label configured on a category.
type AssignmentCriterion string

const (
	CriterionLeastLoad           AssignmentCriterion = "least_load"
	CriterionBestRated           AssignmentCriterion = "best_rated"
	CriterionSLARemaining        AssignmentCriterion = "sla_remaining"
	CriterionPriorityScore       AssignmentCriterion = "priority_score"
	CriterionSpecialistAvailable AssignmentCriterion = "specialist_available"
)

// Category groups tickets and binds them to an SLA and required specialties.
type Category struct {
	ID           int64
	Name         string
	SLAID        int64
	SLA          *SLA
	SpecialtyIDs []int64
	Criterion    AssignmentCriterion
	Active       bool
}
