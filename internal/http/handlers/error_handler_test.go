package handlers_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/internal/http/handlers"
)

func TestErrorHandlerHidesInternals(t *testing.T) {
	logs := observeLogs(t)

	app := fiber.New(fiber.Config{
		Views:        html.New("../../../web/templates", ".html"),
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("sqlite: no such table: secret_ledger")
	})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "Bad page number.")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	page := body(t, resp)
	assert.NotContains(t, page, "secret_ledger")
	assert.Contains(t, page, "Something went wrong. Please try again.")

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Accept", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Something went wrong. Please try again."}`, body(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Bad page number.")

	logged := logs.FilterMessage("server.error").All()
	require.Len(t, logged, 2)
	assert.Contains(t, logged[0].ContextMap()["error"], "secret_ledger")
}

func TestUnknownRouteIs404(t *testing.T) {
	c := newClient(t, newApp(t))
	resp := c.get("/no/such/page", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Page not found.")
}

// Fiber may surface an oversized body as a transport error instead of a response.
func TestOversizedBodyRejected(t *testing.T) {
	app := newApp(t)
	req := httptest.NewRequest(http.MethodPost, "/accounts/login", bytes.NewReader(bytes.Repeat([]byte("A"), (1<<20)+10)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	if err != nil {
		msg := err.Error()
		assert.True(t, strings.Contains(msg, "body size exceeds") || strings.Contains(msg, "too large"), msg)
		return
	}
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
