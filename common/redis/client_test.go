package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"india-blood-connect/common/config"
)

func TestConnect_SelectsDB(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), &config.RedisConfig{Addr: mr.Addr(), DB: 2})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.Select(2)
	assert.True(t, mr.Exists("k"))
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), &config.RedisConfig{Addr: addr})
	assert.ErrorContains(t, err, addr)
}
