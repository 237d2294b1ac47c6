package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClaimer_ClaimOrder(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	claimer := NewRedisClaimer(db, 24*time.Hour)
	ctx := context.Background()

	redisMock.ExpectSetNX("order:claim:e1:o1", "1", 24*time.Hour).SetVal(true)
	redisMock.ExpectSetNX("order:claim:e1:o1", "1", 24*time.Hour).SetVal(false)

	ok, err := claimer.ClaimOrder(ctx, "o1", "e1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = claimer.ClaimOrder(ctx, "o1", "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRedisClaimer_ClaimOrderError(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	claimer := NewRedisClaimer(db, 0)

	redisMock.ExpectSetNX("order:claim:e1:o1", "1", 0).SetErr(errors.New("connection refused"))

	ok, err := claimer.ClaimOrder(context.Background(), "o1", "e1")
	assert.Error(t, err)
	assert.False(t, ok)
	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRedisClaimer_ReleaseOrder(t *testing.T) {
	db, redisMock := redismock.NewClientMock()
	claimer := NewRedisClaimer(db, 0)

	redisMock.ExpectDel("order:claim:e1:o1").SetVal(1)

	require.NoError(t, claimer.ReleaseOrder(context.Background(), "o1", "e1"))
	require.NoError(t, redisMock.ExpectationsWereMet())
}
