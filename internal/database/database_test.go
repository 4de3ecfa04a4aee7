package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS invoices")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, EnsureSchema(context.Background(), mock))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err = EnsureSchema(context.Background(), mock)
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectRejectsBadDSN(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	assert.ErrorContains(t, err, "parse dsn")
}
