package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis lock test")
	}

	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	locker := NewRedisLocker(rdb, "test:"+t.Name()+":")

	release, err := locker.Acquire(ctx, "sweep", 5*time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "sweep", 5*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))

	release2, err := locker.Acquire(ctx, "sweep", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}
