package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock, logging.Discard()), mock
}

var slotColumns = []string{"time_slot", "display_name", "start_time", "end_time", "emoji", "display_order"}

func TestRepositoryTimeSlots(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM appointment_config").
		WillReturnRows(pgxmock.NewRows(slotColumns).AddRow("morning", "Temprano", "08:00", "10:00", "☕", 1))

	slots, err := repo.TimeSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, SlotMorning, slots[0].Slot)
	assert.Equal(t, "Temprano (08:00 - 10:00)", slots[0].Label())
}

func TestRepositoryTimeSlotsDefaultsWhenEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM appointment_config").WillReturnRows(pgxmock.NewRows(slotColumns))

	slots, err := repo.TimeSlots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSlots(), slots)
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	created := time.Now()

	mock.ExpectQuery("FROM appointment_config").WillReturnRows(pgxmock.NewRows(slotColumns))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), userID, "521", "Ana", "2026-10-25", "evening", "16:00", "19:00", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	appt, err := repo.Create(context.Background(), NewAppointment{
		UserID:        userID,
		Phone:         "521",
		VisitorName:   "Ana",
		RequestedDate: time.Date(2026, time.October, 25, 0, 0, 0, 0, time.UTC),
		TimeSlot:      SlotEvening,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "16:00", appt.SlotStart)
	assert.Equal(t, created, appt.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDefaultAgentFallback(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM agent_config").WillReturnError(pgx.ErrNoRows)

	agent, err := repo.DefaultAgent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultAgent(), agent)
}

func TestRepositoryDefaultAgentStored(t *testing.T) {
	repo, mock := newMockRepo(t)
	hours := "9 a 6"

	mock.ExpectQuery("FROM agent_config").
		WillReturnRows(pgxmock.NewRows([]string{"default_agent_phone", "default_agent_name", "notification_template", "business_hours", "advisor_phone", "advisor_email"}).
			AddRow("+5255", "Laura", "{agent_name}", &hours, (*string)(nil), (*string)(nil)))

	agent, err := repo.DefaultAgent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Laura", agent.Name)
	assert.Equal(t, "9 a 6", agent.BusinessHours)
	assert.Empty(t, agent.AdvisorEmail)
}

func TestRepositoryUpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	assert.Error(t, repo.UpdateStatus(context.Background(), id, Status("lost")))

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "confirmed", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), id, StatusConfirmed))

	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, "cancelled", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), id, StatusCancelled), ErrNotFound)
}
