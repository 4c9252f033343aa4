package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"starauto-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestCollect_NothingConnected(t *testing.T) {
	r := Collect(context.Background(), nil, nil, "memory")
	assert.Equal(t, "issue", r.Status)
	assert.Equal(t, "disconnected", r.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", r.Dependencies["redis"].Status)
	assert.Equal(t, "memory", r.Dependencies["storage"].Status)
	assert.Equal(t, 0, r.Traffic.TotalRequests)
}

func TestCollect_WithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	r := Collect(ctx, rdb, pinger{}, "supabase")
	assert.Equal(t, "ok", r.Status)
	assert.Equal(t, "100", r.Traffic.SuccessRate)
	assert.True(t, mr.Exists(middleware.KeyStartTime))

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqErrors, "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResTime, "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResCount, "10", 0).Err())

	r = Collect(ctx, rdb, pinger{err: errors.New("down")}, "supabase")
	assert.Equal(t, "issue", r.Status)
	assert.Equal(t, "error", r.Dependencies["database"].Status)
	assert.Equal(t, 10, r.Traffic.TotalRequests)
	assert.Equal(t, 8, r.Traffic.SuccessCount)
	assert.Equal(t, "80.0", r.Traffic.SuccessRate)
	assert.Equal(t, "15.05", r.Traffic.AvgResponseTime)
}

func TestRecentErrorsAndReset(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	rdb.LPush(ctx, middleware.KeyErrorLog, `{"path":"/api/1","status":500}`, "not json")
	errs, err := RecentErrors(ctx, rdb)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "/api/1", errs[0]["path"])

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "5", 0).Err())
	now := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, Reset(ctx, rdb, now))
	assert.False(t, mr.Exists(middleware.KeyReqTotal))
	assert.False(t, mr.Exists(middleware.KeyErrorLog))
	start, _ := mr.Get(middleware.KeyStartTime)
	assert.Equal(t, "1700000000000", start)
}
