package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// ErrAlreadyRated is returned when the ticket already carries a rating.
var ErrAlreadyRated = errors.New("ticket already rated")

const uniqueViolation = "23505"

// RatingRepository stores requester ratings, at most one per ticket.
type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	GetByTicket(ctx context.Context, ticketID int64) (*domain.Rating, error)
	// TechnicianAverage is the mean score over every rating of the technician.
	TechnicianAverage(ctx context.Context, technicianID int64) (float64, error)
}

type ratingRepository struct {
	db DBTX
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ratings (ticket_id, technician_id, requester_id, score, comment, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		rating.TicketID,
		rating.TechnicianID,
		rating.RequesterID,
		rating.Score,
		rating.Comment,
		rating.CreatedAt,
	).Scan(&rating.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyRated
	}
	return err
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID int64) (*domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, technician_id, requester_id, score, comment, created_at
        FROM ratings WHERE ticket_id=$1`
	var rating domain.Rating
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.TechnicianID,
		&rating.RequesterID,
		&rating.Score,
		&rating.Comment,
		&rating.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) TechnicianAverage(ctx context.Context, technicianID int64) (float64, error) {
	var avg float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(score), 0)::float8 FROM ratings WHERE technician_id=$1`,
		technicianID,
	).Scan(&avg)
	return avg, err
}
