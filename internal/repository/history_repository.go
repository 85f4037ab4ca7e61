package repository

import (
	"context"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// HistoryRepository stores the append-only audit trail of a ticket.
type HistoryRepository interface {
	AppendStateChange(ctx context.Context, change *domain.StateChange) error
	AppendAssignment(ctx context.Context, assignment *domain.Assignment) error
	StateChanges(ctx context.Context, ticketID int64) ([]domain.StateChange, error)
	Assignments(ctx context.Context, ticketID int64) ([]domain.Assignment, error)
}

type historyRepository struct {
	db DBTX
}

// AppendStateChange inserts the record and its evidence references.
func (r *historyRepository) AppendStateChange(ctx context.Context, change *domain.StateChange) error {
	const query = `
        INSERT INTO state_changes (ticket_id, from_status, to_status, actor_id, notes, changed_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	if err := r.db.QueryRow(ctx, query,
		change.TicketID,
		change.FromStatus,
		change.ToStatus,
		change.ActorID,
		change.Notes,
		change.ChangedAt,
	).Scan(&change.ID); err != nil {
		return err
	}

	const evidenceQuery = `
        INSERT INTO evidence_images (state_change_id, file_name, storage_path)
        VALUES ($1,$2,$3)
        RETURNING id`
	for i := range change.Evidence {
		image := &change.Evidence[i]
		image.StateChangeID = change.ID
		if err := r.db.QueryRow(ctx, evidenceQuery, change.ID, image.FileName, image.StoragePath).Scan(&image.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *historyRepository) AppendAssignment(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (ticket_id, technician_id, method, assigned_at, assigned_by, score, rationale)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		assignment.TicketID,
		assignment.TechnicianID,
		assignment.Method,
		assignment.AssignedAt,
		assignment.AssignedBy,
		assignment.Score,
		assignment.Rationale,
	).Scan(&assignment.ID)
}

func (r *historyRepository) StateChanges(ctx context.Context, ticketID int64) ([]domain.StateChange, error) {
	const query = `
        SELECT id, ticket_id, from_status, to_status, actor_id, notes, changed_at
        FROM state_changes WHERE ticket_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StateChange
	index := map[int64]int{}
	for rows.Next() {
		var change domain.StateChange
		if err := rows.Scan(
			&change.ID,
			&change.TicketID,
			&change.FromStatus,
			&change.ToStatus,
			&change.ActorID,
			&change.Notes,
			&change.ChangedAt,
		); err != nil {
			return nil, err
		}
		index[change.ID] = len(result)
		result = append(result, change)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	const evidenceQuery = `
        SELECT e.id, e.state_change_id, e.file_name, e.storage_path
        FROM evidence_images e JOIN state_changes s ON s.id = e.state_change_id
        WHERE s.ticket_id=$1 ORDER BY e.id`
	evRows, err := r.db.Query(ctx, evidenceQuery, ticketID)
	if err != nil {
		return nil, err
	}
	defer evRows.Close()
	for evRows.Next() {
		var image domain.EvidenceImage
		if err := evRows.Scan(&image.ID, &image.StateChangeID, &image.FileName, &image.StoragePath); err != nil {
			return nil, err
		}
		if i, ok := index[image.StateChangeID]; ok {
			result[i].Evidence = append(result[i].Evidence, image)
		}
	}
	return result, evRows.Err()
}

func (r *historyRepository) Assignments(ctx context.Context, ticketID int64) ([]domain.Assignment, error) {
	const query = `
        SELECT id, ticket_id, technician_id, method, assigned_at, assigned_by, score, rationale
        FROM assignments WHERE ticket_id=$1 ORDER BY assigned_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.TicketID,
			&assignment.TechnicianID,
			&assignment.Method,
			&assignment.AssignedAt,
			&assignment.AssignedBy,
			&assignment.Score,
			&assignment.Rationale,
		); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}
