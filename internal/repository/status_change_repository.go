package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// StatusChangeRepository stores the append-only status audit trail.
type StatusChangeRepository interface {
	Create(ctx context.Context, change *domain.TicketStatusChange) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStatusChange, error)
}

type statusChangeRepository struct {
	pool *pgxpool.Pool
}

// NewStatusChangeRepository builds repository.
func NewStatusChangeRepository(pool *pgxpool.Pool) StatusChangeRepository {
	return &statusChangeRepository{pool: pool}
}

func (r *statusChangeRepository) Create(ctx context.Context, change *domain.TicketStatusChange) error {
	const query = `
        INSERT INTO ticket_status_changes (ticket_id, old_status, new_status, changed_by_user_id, changed_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		change.TicketID,
		change.OldStatus,
		change.NewStatus,
		change.ChangedByUserID,
		change.ChangedAt,
	).Scan(&change.ID)
}

func (r *statusChangeRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStatusChange, error) {
	const query = `
        SELECT id, ticket_id, old_status, new_status, changed_by_user_id, changed_at
        FROM ticket_status_changes WHERE ticket_id=$1 ORDER BY changed_at ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatusChange
	for rows.Next() {
		var change domain.TicketStatusChange
		if err := rows.Scan(
			&change.ID,
			&change.TicketID,
			&change.OldStatus,
			&change.NewStatus,
			&change.ChangedByUserID,
			&change.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, change)
	}
	return result, rows.Err()
}
