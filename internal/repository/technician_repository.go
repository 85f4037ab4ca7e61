package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// TechnicianFilter narrows technician listings.
type TechnicianFilter struct {
	Availability *domain.Availability
	// SpecialtyIDs keeps technicians holding at least one of the ids.
	SpecialtyIDs []int64
}

// TechnicianRepository persists technicians and their workload counters.
type TechnicianRepository interface {
	Get(ctx context.Context, id int64) (*domain.Technician, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Technician, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
	// Update saves workload, availability and rating under the version guard.
	Update(ctx context.Context, technician *domain.Technician) error
}

type technicianRepository struct {
	db DBTX
}

const technicianSelect = `
        SELECT t.id, t.user_id, t.name, t.workload, t.availability, t.average_rating::float8, t.version, t.updated_at,
               COALESCE(ARRAY(SELECT ts.specialty_id FROM technician_specialties ts
                              WHERE ts.technician_id = t.id ORDER BY ts.specialty_id), '{}')
        FROM technicians t`

func (r *technicianRepository) Get(ctx context.Context, id int64) (*domain.Technician, error) {
	return scanTechnician(r.db.QueryRow(ctx, technicianSelect+` WHERE t.id=$1`, id))
}

func (r *technicianRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Technician, error) {
	return scanTechnician(r.db.QueryRow(ctx, technicianSelect+` WHERE t.id=$1 FOR UPDATE OF t`, id))
}

func (r *technicianRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Technician, error) {
	return scanTechnician(r.db.QueryRow(ctx, technicianSelect+` WHERE t.user_id=$1`, userID))
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Availability != nil {
		args = append(args, *filter.Availability)
		clauses = append(clauses, fmt.Sprintf("t.availability=$%d", len(args)))
	}
	if len(filter.SpecialtyIDs) > 0 {
		args = append(args, filter.SpecialtyIDs)
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM technician_specialties ts WHERE ts.technician_id = t.id AND ts.specialty_id = ANY($%d))", len(args)))
	}

	rows, err := r.db.Query(ctx, technicianSelect+` WHERE `+strings.Join(clauses, " AND ")+` ORDER BY t.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tech)
	}
	return result, rows.Err()
}

func (r *technicianRepository) Update(ctx context.Context, technician *domain.Technician) error {
	const query = `
        UPDATE technicians SET workload=$1, availability=$2, average_rating=$3, updated_at=NOW(), version=version+1
        WHERE id=$4 AND version=$5
        RETURNING updated_at, version`
	err := r.db.QueryRow(ctx, query,
		technician.Workload,
		technician.Availability,
		technician.AverageRating,
		technician.ID,
		technician.Version,
	).Scan(&technician.UpdatedAt, &technician.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

func scanTechnician(row pgx.Row) (*domain.Technician, error) {
	var tech domain.Technician
	if err := row.Scan(
		&tech.ID,
		&tech.UserID,
		&tech.Name,
		&tech.Workload,
		&tech.Availability,
		&tech.AverageRating,
		&tech.Version,
		&tech.UpdatedAt,
		&tech.SpecialtyIDs,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}
