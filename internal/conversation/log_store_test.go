package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-leadbot/internal/intent"
)

func newMockLogStore(t *testing.T) (*LogStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLogStore(db), mock
}

func TestNilLogStoreDiscards(t *testing.T) {
	var store *LogStore
	assert.Nil(t, NewLogStore(nil))

	id, err := store.SaveIncoming(context.Background(), uuid.New(), "wamid", "hola", nil)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.NoError(t, store.SaveOutgoing(context.Background(), uuid.New(), "hola", false, 0))
	assert.NoError(t, store.SaveIntentLog(context.Background(), IntentLogEntry{}))

	recs, err := store.Recent(context.Background(), uuid.New(), 10)
	assert.NoError(t, err)
	assert.Nil(t, recs)
}

func TestSaveIncomingWithIntent(t *testing.T) {
	store, mock := newMockLogStore(t)
	userID := uuid.New()

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), userID, "wamid.1", DirectionIncoming, "precio", "precio", 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.SaveIncoming(context.Background(), userID, "wamid.1", "precio", &intent.Match{IntentName: "precio", Confidence: 1.0})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutgoingFallbackLevel(t *testing.T) {
	store, mock := newMockLogStore(t)
	userID := uuid.New()

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(sqlmock.AnyArg(), userID, DirectionOutgoing, MsgFallbackMenu, true, int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.SaveOutgoing(context.Background(), userID, MsgFallbackMenu, true, 2))

	mock.ExpectExec("INSERT INTO conversations").WillReturnError(errors.New("connection reset"))
	assert.Error(t, store.SaveOutgoing(context.Background(), userID, "hola", false, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveIntentLog(t *testing.T) {
	store, mock := newMockLogStore(t)
	userID, convID := uuid.New(), uuid.New()

	mock.ExpectExec("INSERT INTO intents_log").
		WithArgs(sqlmock.AnyArg(), userID, convID, "ubicacion", 0.83, "fuzzy",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "ubicacio direcci", "ubicacio direcci", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveIntentLog(context.Background(), IntentLogEntry{
		UserID:         userID,
		ConversationID: convID,
		Match: intent.Match{
			IntentName:   "ubicacion",
			Confidence:   0.83,
			Method:       intent.MethodFuzzy,
			MatchedTerms: []string{"ubicacion", "direccion"},
			Evidence:     []intent.Evidence{{Token: "ubicacio", Term: "ubicacion", Similarity: 0.89, Method: "levenshtein"}},
		},
		OriginalMessage:   "ubicacio direcci",
		NormalizedMessage: "ubicacio direcci",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	store, mock := newMockLogStore(t)
	userID := uuid.New()
	sent := time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "message_id", "direction", "message_text", "detected_intent",
		"intent_confidence", "was_fallback", "fallback_level", "sent_at"}).
		AddRow(uuid.New().String(), userID.String(), nil, DirectionOutgoing, MsgFallbackClarify, nil, nil, true, 1, sent).
		AddRow(uuid.New().String(), userID.String(), "wamid.1", DirectionIncoming, "precio", "precio", 1.0, false, nil, sent)
	mock.ExpectQuery("FROM conversations").WithArgs(userID, 20).WillReturnRows(rows)

	recs, err := store.Recent(context.Background(), userID, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].FallbackLevel)
	assert.True(t, recs[0].WasFallback)
	assert.Equal(t, "precio", recs[1].DetectedIntent)
	assert.Equal(t, "wamid.1", recs[1].MessageID)
	assert.Equal(t, userID, recs[1].UserID)
}
