package repository

import (
	"context"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// NotificationRepository is the per-user inbox.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListForUser(ctx context.Context, userID int64, onlyPending bool, limit, offset int) ([]domain.Notification, error)
	CountPending(ctx context.Context, userID int64) (int, error)
	// MarkRead flags the notification read when it belongs to userID.
	MarkRead(ctx context.Context, id, userID int64, at time.Time) error
}

type notificationRepository struct {
	db DBTX
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, ticket_id, type, message, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	if n.Status == "" {
		n.Status = domain.NotificationStatusPending
	}
	return r.db.QueryRow(ctx, query, n.RecipientID, n.TicketID, n.Type, n.Message, n.Status).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID int64, onlyPending bool, limit, offset int) ([]domain.Notification, error) {
	const query = `
        SELECT id, recipient_id, ticket_id, type, message, status, created_at, read_at
        FROM notifications
        WHERE recipient_id=$1 AND ($2::boolean = FALSE OR status='PENDING')
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4`
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, query, userID, onlyPending, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.TicketID, &n.Type, &n.Message, &n.Status, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountPending(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND status='PENDING'`, userID).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID int64, at time.Time) error {
	const query = `
        UPDATE notifications SET status='READ', read_at=COALESCE(read_at, $3)
        WHERE id=$1 AND recipient_id=$2`
	cmd, err := r.db.Exec(ctx, query, id, userID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
