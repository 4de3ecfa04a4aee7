package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

var record = upn.Record{
	DueDate:         "2021-01-31",
	TotalAmount:     "1337.80",
	BankAccount:     "SI56 1234 5678 9012 3456",
	IssuerName:      "Podjetje d.o.o.",
	ReferenceNumber: "SI00 20230922",
}

func TestKey(t *testing.T) {
	k := Key([]byte("%PDF-1.4"))
	assert.True(t, strings.HasPrefix(k, "upnqr:record:"))
	assert.Len(t, k, len("upnqr:record:")+64)
	assert.Equal(t, k, Key([]byte("%PDF-1.4")))
	assert.NotEqual(t, k, Key([]byte("%PDF-1.5")))
}

func TestRedisRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, time.Hour, zap.NewNop())
	ctx := context.Background()
	key := Key([]byte("invoice"))

	data, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, string(data), time.Hour).SetVal("OK")
	mock.ExpectGet(key).SetVal(string(data))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, key, &record))

	got, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record, *got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, time.Minute, zap.NewNop())
	ctx := context.Background()

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	_, _, err := c.Get(ctx, "k")
	assert.ErrorContains(t, err, "connection refused")

	mock.ExpectGet("k").SetVal("{not json")
	got, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNop(t *testing.T) {
	var c RecordCache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", &record))
	got, ok, err := c.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}
