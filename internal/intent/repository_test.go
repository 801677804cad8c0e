package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCatalogLoadActiveIntents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM intent_configurations").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "intent_name", "display_name", "keywords", "synonyms", "typos", "phrases",
			"min_confidence", "priority", "response_type", "is_checkpoint", "is_active",
		}).AddRow(id, "precio", "Precios", []string{"precio"}, []string{"costo"}, []string{"presio"},
			[]string{"cuanto cuesta"}, 0.7, 10, "text", true, true))

	catalog := NewPostgresCatalog(mock)
	defs, err := catalog.LoadActiveIntents(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, id, defs[0].ID)
	assert.Equal(t, "precio", defs[0].Name)
	assert.Equal(t, []string{"presio"}, defs[0].Typos)
	assert.Equal(t, 10, defs[0].Priority)
	assert.True(t, defs[0].IsCheckpoint)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalogQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("FROM intent_configurations").WillReturnError(errors.New("boom"))

	_, err = NewPostgresCatalog(mock).LoadActiveIntents(context.Background())
	assert.Error(t, err)
}

func TestNewPostgresCatalogNilPool(t *testing.T) {
	assert.Nil(t, NewPostgresCatalog(nil))
}
