package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// ErrNotFound is returned when an appointment id does not exist.
var ErrNotFound = errors.New("appointment: not found")

// PgxPool is the subset of pgxpool.Pool the repository uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists appointments and their configuration.
type PostgresRepository struct {
	pool   PgxPool
	logger *logging.Logger
	now    func() time.Time
}

func NewPostgresRepository(pool PgxPool, logger *logging.Logger) *PostgresRepository {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresRepository{pool: pool, logger: logger, now: time.Now}
}

// TimeSlots returns active slot configuration, or DefaultSlots when none is stored.
func (r *PostgresRepository) TimeSlots(ctx context.Context) ([]SlotConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot, display_name, start_time, end_time, emoji, display_order
		FROM appointment_config
		WHERE is_active = true
		ORDER BY display_order ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("appointment: query time slots: %w", err)
	}
	defer rows.Close()

	var slots []SlotConfig
	for rows.Next() {
		var c SlotConfig
		var slot string
		if err := rows.Scan(&slot, &c.DisplayName, &c.StartTime, &c.EndTime, &c.Emoji, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("appointment: scan time slot: %w", err)
		}
		c.Slot = TimeSlot(slot)
		slots = append(slots, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment: iterate time slots: %w", err)
	}
	if len(slots) == 0 {
		return DefaultSlots(), nil
	}
	return slots, nil
}

// Create inserts a pending appointment, copying the slot window from config.
func (r *PostgresRepository) Create(ctx context.Context, req NewAppointment) (*Appointment, error) {
	slots, err := r.TimeSlots(ctx)
	if err != nil {
		return nil, err
	}
	start, end := "09:00", "18:00"
	for _, c := range slots {
		if c.Slot == req.TimeSlot {
			start, end = c.StartTime, c.EndTime
			break
		}
	}

	appt := &Appointment{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Phone:         req.Phone,
		VisitorName:   req.VisitorName,
		RequestedDate: req.RequestedDate,
		TimeSlot:      req.TimeSlot,
		SlotStart:     start,
		SlotEnd:       end,
		Status:        StatusPending,
	}
	query := `
		INSERT INTO appointments (id, user_id, phone, visitor_name, requested_date, time_slot, time_slot_start, time_slot_end, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		appt.ID,
		appt.UserID,
		appt.Phone,
		appt.VisitorName,
		appt.RequestedDate.Format(DateLayout),
		string(appt.TimeSlot),
		start,
		end,
		string(appt.Status),
	).Scan(&appt.CreatedAt); err != nil {
		return nil, fmt.Errorf("appointment: insert failed: %w", err)
	}
	return appt, nil
}

// MarkAgentNotified stamps agent_notified_at.
func (r *PostgresRepository) MarkAgentNotified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET agent_notified_at = $2, updated_at = $2 WHERE id = $1`, id, r.now().UTC())
	if err != nil {
		return fmt.Errorf("appointment: mark agent notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DefaultAgent returns the active agent configuration, falling back to
// DefaultAgent when none is stored or the lookup fails.
func (r *PostgresRepository) DefaultAgent(ctx context.Context) (AgentConfig, error) {
	var cfg AgentConfig
	var hours, advisorPhone, advisorEmail *string
	err := r.pool.QueryRow(ctx, `
		SELECT default_agent_phone, default_agent_name, notification_template, business_hours, advisor_phone, advisor_email
		FROM agent_config
		WHERE is_active = true
		LIMIT 1
	`).Scan(&cfg.Phone, &cfg.Name, &cfg.Template, &hours, &advisorPhone, &advisorEmail)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("agent config lookup failed, using fallback", "error", err)
		}
		return DefaultAgent(), nil
	}
	cfg.BusinessHours = deref(hours)
	cfg.AdvisorPhone = deref(advisorPhone)
	cfg.AdvisorEmail = deref(advisorEmail)
	return cfg, nil
}

// List returns the most recent appointments, optionally filtered by status.
func (r *PostgresRepository) List(ctx context.Context, status Status, limit int) ([]Appointment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, phone, visitor_name, requested_date, time_slot, time_slot_start, time_slot_end,
		       status, agent_notified_at, created_at, confirmed_at, cancelled_at
		FROM appointments
		WHERE ($1 = '' OR status = $1)
		ORDER BY requested_date ASC, created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("appointment: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		var slot, st string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Phone, &a.VisitorName, &a.RequestedDate, &slot, &a.SlotStart, &a.SlotEnd,
			&st, &a.AgentNotifiedAt, &a.CreatedAt, &a.ConfirmedAt, &a.CancelledAt); err != nil {
			return nil, fmt.Errorf("appointment: scan: %w", err)
		}
		a.TimeSlot = TimeSlot(slot)
		a.Status = Status(st)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment: iterate: %w", err)
	}
	return out, nil
}

// UpdateStatus moves an appointment to status and stamps the matching timestamp.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("appointment: invalid status %q", status)
	}
	now := r.now().UTC()
	var confirmedAt, cancelledAt *time.Time
	switch status {
	case StatusConfirmed:
		confirmedAt = &now
	case StatusCancelled:
		cancelledAt = &now
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $3,
		    confirmed_at = COALESCE($4, confirmed_at),
		    cancelled_at = COALESCE($5, cancelled_at)
		WHERE id = $1
	`, id, string(status), now, confirmedAt, cancelledAt)
	if err != nil {
		return fmt.Errorf("appointment: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
