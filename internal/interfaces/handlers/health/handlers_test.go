package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"starauto-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHealthTest(t *testing.T) (*fiber.App, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	h := &Handlers{Rdb: rdb, StorageDriver: "memory", HealthAdminKey: "test-admin-key"}
	app := fiber.New()
	app.Get("/", h.Live)
	app.Get("/health/json", h.JSON)
	app.Get("/health/errors", h.Errors)
	app.Post("/health/reset", h.Reset)
	return app, mr, rdb
}

func decode(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r).Decode(v))
}

func TestJSON_ReturnsStructure(t *testing.T) {
	app, _, _ := setupHealthTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]interface{}
	decode(t, resp.Body, &out)
	assert.Equal(t, "starauto-api", out["service"])
	assert.Equal(t, "issue", out["status"])
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "connected", deps["redis"].(map[string]interface{})["status"])
	assert.Equal(t, "memory", deps["storage"].(map[string]interface{})["status"])
}

func TestErrors_ReturnsArray(t *testing.T) {
	app, _, rdb := setupHealthTest(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	var empty []interface{}
	decode(t, resp.Body, &empty)
	assert.Empty(t, empty)

	rdb.LPush(context.Background(), middleware.KeyErrorLog, `{"path":"/api/7","status":500}`)
	resp, err = app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	var entries []map[string]interface{}
	decode(t, resp.Body, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/7", entries[0]["path"])
}

func TestReset(t *testing.T) {
	app, mr, rdb := setupHealthTest(t)
	require.NoError(t, rdb.Set(context.Background(), middleware.KeyReqTotal, "5", 0).Err())

	resp, err := app.Test(httptest.NewRequest("POST", "/health/reset?key=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
	assert.True(t, mr.Exists(middleware.KeyReqTotal))

	resp, err = app.Test(httptest.NewRequest("POST", "/health/reset?key=test-admin-key", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]interface{}
	decode(t, resp.Body, &out)
	assert.Equal(t, "Stats reset successfully", out["message"])
	assert.False(t, mr.Exists(middleware.KeyReqTotal))
	assert.True(t, mr.Exists(middleware.KeyStartTime))
}

func TestLive(t *testing.T) {
	app, _, _ := setupHealthTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
