package repository

import (
	"context"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// CategoryRepository reads categories together with their SLA and required
// specialties.
type CategoryRepository interface {
	Get(ctx context.Context, id int64) (*domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// Get loads the category. Category.SLA is nil when no active SLA is attached.
func (r *categoryRepository) Get(ctx context.Context, id int64) (*domain.Category, error) {
	const query = `
        SELECT c.id, c.name, COALESCE(c.sla_id, 0), c.criterion, c.active,
               s.id, s.name, s.response_minutes, s.resolution_minutes,
               COALESCE(ARRAY(SELECT cs.specialty_id FROM category_specialties cs
                              WHERE cs.category_id = c.id ORDER BY cs.specialty_id), '{}')
        FROM categories c
        LEFT JOIN slas s ON s.id = c.sla_id AND s.active
        WHERE c.id=$1`

	var (
		category       domain.Category
		slaID          *int64
		slaName        *string
		responseMins   *int
		resolutionMins *int
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.SLAID,
		&category.Criterion,
		&category.Active,
		&slaID,
		&slaName,
		&responseMins,
		&resolutionMins,
		&category.SpecialtyIDs,
	); err != nil {
		return nil, err
	}
	if slaID != nil {
		category.SLA = &domain.SLA{
			ID:                *slaID,
			Name:              *slaName,
			ResponseMinutes:   *responseMins,
			ResolutionMinutes: *resolutionMins,
			Active:            true,
		}
	}
	return &category, nil
}
