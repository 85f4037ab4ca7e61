package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = pgx.ErrNoRows
	// ErrVersionConflict is returned when a guarded update lost a race.
	ErrVersionConflict = errors.New("row was modified concurrently")
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories that must be able to share a transaction.
type Store interface {
	Tickets() TicketRepository
	Technicians() TechnicianRepository
	Categories() CategoryRepository
	History() HistoryRepository
	Notifications() NotificationRepository
	Ratings() RatingRepository

	// WithTx runs fn against a Store bound to one transaction, committing when
	// fn returns nil. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewStore builds a Postgres backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() TicketRepository { return &ticketRepository{db: s.db} }
func (s *pgStore) Technicians() TechnicianRepository { return &technicianRepository{db: s.db} }
func (s *pgStore) Categories() CategoryRepository { return &categoryRepository{db: s.db} }
func (s *pgStore) History() HistoryRepository { return &historyRepository{db: s.db} }
func (s *pgStore) Notifications() NotificationRepository { return &notificationRepository{db: s.db} }
func (s *pgStore) Ratings() RatingRepository { return &ratingRepository{db: s.db} }

func (s *pgStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&pgStore{pool: s.pool, db: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
