package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when an advisor request id does not exist or is
// not in a state that allows the transition.
var ErrNotFound = errors.New("support: advisor request not found")

// ReasonFallbackLimit marks requests raised after repeated misunderstandings.
const ReasonFallbackLimit = "fallback_limit"

// RequestStatus is the lifecycle of a human handoff.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusContacted RequestStatus = "contacted"
	StatusResolved  RequestStatus = "resolved"
	StatusCancelled RequestStatus = "cancelled"
)

// AdvisorRequest is a user waiting for a human advisor.
type AdvisorRequest struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               uuid.UUID     `json:"user_id"`
	Phone                string        `json:"phone"`
	Name                 string        `json:"name"`
	Reason               string        `json:"request_reason"`
	LastUserMessage      string        `json:"last_user_message"`
	FallbackCount        int           `json:"fallback_count"`
	LeadScore            int           `json:"lead_score"`
	CheckpointsCompleted int           `json:"checkpoints_completed"`
	Status               RequestStatus `json:"status"`
	AssignedTo           string        `json:"assigned_to,omitempty"`
	ContactedAt          *time.Time    `json:"contacted_at,omitempty"`
	ResolvedAt           *time.Time    `json:"resolved_at,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}

// NewRequest carries what the conversation knows at handoff time.
type NewRequest struct {
	UserID               uuid.UUID
	Phone                string
	Name                 string
	Reason               string
	LastUserMessage      string
	FallbackCount        int
	LeadScore            int
	LeadStatus           string
	CheckpointsCompleted int
}

// PgxPool is the subset of pgxpool.Pool the repository uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists advisor requests in Postgres.
type Repository struct {
	pool PgxPool
	now  func() time.Time
}

func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("support: pgx pool required")
	}
	return &Repository{pool: pool, now: time.Now}
}

// Create inserts a pending request.
func (r *Repository) Create(ctx context.Context, req NewRequest) (*AdvisorRequest, error) {
	reason := req.Reason
	if reason == "" {
		reason = ReasonFallbackLimit
	}
	out := &AdvisorRequest{
		ID:                   uuid.New(),
		UserID:               req.UserID,
		Phone:                req.Phone,
		Name:                 req.Name,
		Reason:               reason,
		LastUserMessage:      req.LastUserMessage,
		FallbackCount:        req.FallbackCount,
		LeadScore:            req.LeadScore,
		CheckpointsCompleted: req.CheckpointsCompleted,
		Status:               StatusPending,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO advisor_requests (id, user_id, phone, name, request_reason, last_user_message,
			fallback_count, lead_score, checkpoints_completed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, out.ID, out.UserID, out.Phone, out.Name, out.Reason, out.LastUserMessage,
		out.FallbackCount, out.LeadScore, out.CheckpointsCompleted, string(out.Status)).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("support: insert advisor request: %w", err)
	}
	return out, nil
}

// ListPending returns pending requests, newest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]AdvisorRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, phone, name, request_reason, last_user_message, fallback_count,
		       lead_score, checkpoints_completed, status, assigned_to, contacted_at, resolved_at, notes, created_at
		FROM advisor_requests
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("support: list pending: %w", err)
	}
	defer rows.Close()

	var out []AdvisorRequest
	for rows.Next() {
		var a AdvisorRequest
		var status string
		var assignedTo, notes *string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Phone, &a.Name, &a.Reason, &a.LastUserMessage, &a.FallbackCount,
			&a.LeadScore, &a.CheckpointsCompleted, &status, &assignedTo, &a.ContactedAt, &a.ResolvedAt, &notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("support: scan advisor request: %w", err)
		}
		a.Status = RequestStatus(status)
		if assignedTo != nil {
			a.AssignedTo = *assignedTo
		}
		if notes != nil {
			a.Notes = *notes
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("support: iterate advisor requests: %w", err)
	}
	return out, nil
}

// MarkContacted assigns a pending request to an advisor.
func (r *Repository) MarkContacted(ctx context.Context, id uuid.UUID, assignedTo string) error {
	now := r.now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE advisor_requests
		SET status = $2, assigned_to = $3, contacted_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
	`, id, string(StatusContacted), assignedTo, now, string(StatusPending))
	if err != nil {
		return fmt.Errorf("support: mark contacted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkResolved closes a request that has not been resolved yet.
func (r *Repository) MarkResolved(ctx context.Context, id uuid.UUID, notes string) error {
	now := r.now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE advisor_requests
		SET status = $2, resolved_at = $3, notes = $4, updated_at = $3
		WHERE id = $1 AND status <> $2
	`, id, string(StatusResolved), now, notes)
	if err != nil {
		return fmt.Errorf("support: mark resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
