package support

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestRepositoryCreateDefaultsReason(t *testing.T) {
	repo, mock := newMockRepository(t)
	userID := uuid.New()
	created := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO advisor_requests").
		WithArgs(pgxmock.AnyArg(), userID, "5215511112222", "Ana López", ReasonFallbackLimit, "no entiendo",
			3, 30, 2, "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	req, err := repo.Create(context.Background(), NewRequest{
		UserID:               userID,
		Phone:                "5215511112222",
		Name:                 "Ana López",
		LastUserMessage:      "no entiendo",
		FallbackCount:        3,
		LeadScore:            30,
		CheckpointsCompleted: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, created, req.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListPending(t *testing.T) {
	repo, mock := newMockRepository(t)
	id, userID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM advisor_requests").
		WithArgs("pending", 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "phone", "name", "request_reason", "last_user_message", "fallback_count",
			"lead_score", "checkpoints_completed", "status", "assigned_to", "contacted_at", "resolved_at", "notes", "created_at",
		}).AddRow(id, userID, "521", "Ana", ReasonFallbackLimit, "hola", 3, 15, 1, "pending",
			(*string)(nil), (*time.Time)(nil), (*time.Time)(nil), (*string)(nil), now))

	got, err := repo.ListPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Empty(t, got[0].AssignedTo)
}

func TestRepositoryTransitions(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE advisor_requests").
		WithArgs(id, "contacted", "laura", pgxmock.AnyArg(), "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkContacted(context.Background(), id, "laura"))

	mock.ExpectExec("UPDATE advisor_requests").
		WithArgs(id, "contacted", "laura", pgxmock.AnyArg(), "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.MarkContacted(context.Background(), id, "laura"), ErrNotFound)

	mock.ExpectExec("UPDATE advisor_requests").
		WithArgs(id, "resolved", pgxmock.AnyArg(), "visitó el sábado").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkResolved(context.Background(), id, "visitó el sábado"))
	require.NoError(t, mock.ExpectationsWereMet())
}
