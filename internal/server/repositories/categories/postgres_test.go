package categories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, name, description, last_modified, updated_at FROM categories ORDER BY name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "last_modified", "updated_at"}).
			AddRow("tools", "Tools", "Hand tools", ts, ts))

	got, err := NewPostgresRepository(db).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []*models.Category{{ID: "tools", Name: "Tools", Description: "Hand tools", LastModified: ts, UpdatedAt: ts}}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))

	_, err = NewPostgresRepository(db).List(context.Background())
	assert.ErrorContains(t, err, "failed to select categories")
}
