package cache

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/pkg/config"
)

func redisConfig(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestNewRedisConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(context.Background(), redisConfig(t, mr))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)
	mr.Close()

	client, err := NewRedis(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, client)
}
