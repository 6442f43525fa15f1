package log

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestOutsideRequest(t *testing.T) {
	logs := observe(t)

	Audit(nil, "seed.demo", map[string]any{"users": 3})
	Error(nil, "events.publish", errors.New("broker down"), nil)

	require.Equal(t, 2, logs.Len())
	audit := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, audit.Level)
	assert.Equal(t, "seed.demo", audit.ContextMap()["action"])
	assert.Equal(t, true, audit.ContextMap()["audit"])
	assert.EqualValues(t, 3, audit.ContextMap()["users"])

	failed := logs.All()[1]
	assert.Equal(t, zapcore.ErrorLevel, failed.Level)
	assert.Equal(t, "broker down", failed.ContextMap()["error"])
}

func TestRequestFields(t *testing.T) {
	logs := observe(t)

	app := fiber.New()
	app.Get("/orders/:id", func(c *fiber.Ctx) error {
		c.Locals("user_id", int64(9))
		c.Locals("requestid", "rid-1")
		Security(c, "access.denied.order", map[string]any{"order_id": 4})
		return c.SendStatus(fiber.StatusForbidden)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/orders/4", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	entries := logs.FilterMessage("access.denied.order").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/orders/4", fields["path"])
	assert.Equal(t, "rid-1", fields["req_id"])
	assert.EqualValues(t, 9, fields["user_id"])
	assert.EqualValues(t, 4, fields["order_id"])
}
