package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disease-predictor/internal/common/config"
)

func TestRedisClient_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	require.NoError(t, client.Set(ctx, "k", []byte{0x01, 0x02}, time.Minute))
	got, err := client.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, got)

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.GetBytes(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisClient_PingFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(redis.ErrClosed)

	client := NewRedisFromClient(db)
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
