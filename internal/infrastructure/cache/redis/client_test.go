package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/molregistry/pkg/errors"
)

func TestNewClient_Standalone_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(Config{Addr: "127.0.0.1:1", MaxRetries: -1}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestSearchCache_AgainstServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	cache := NewSearchCache(client, logging.NewNopLogger())

	require.NoError(t, cache.Set(ctx, "k", []string{"m1", "m2"}, 0))
	assert.True(t, mr.Exists("molreg:k"))
	assert.Greater(t, mr.TTL("molreg:k"), time.Duration(0))

	ids, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close(), "second close is a no-op")

	assert.Equal(t, ErrClientClosed, client.Get(context.Background(), "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}
