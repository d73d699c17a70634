package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jarida/core"
)

func TestCreateAppUser(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	conf := core.NewTestConfig()
	conf.Database.User = "jarida"
	conf.Database.Password = "it's secret"

	mock.ExpectQuery(`SELECT true FROM pg_roles WHERE rolname = \$1`).
		WithArgs("jarida").
		WillReturnRows(sqlmock.NewRows([]string{"bool"}))
	mock.ExpectExec(`CREATE USER "jarida" CREATEDB ENCRYPTED PASSWORD 'it''s secret'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, createAppUser(context.Background(), db, conf))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDB_Exists(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	conf := core.NewTestConfig()
	conf.Database.Name = "jarida_test"

	mock.ExpectQuery(`SELECT true FROM pg_database WHERE datname = \$1`).
		WithArgs("jarida_test").
		WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

	require.NoError(t, createDB(context.Background(), db, conf))
	assert.NoError(t, mock.ExpectationsWereMet())
}
