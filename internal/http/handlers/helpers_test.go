package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"tienda/internal/config"
	"tienda/internal/http/handlers"
	"tienda/internal/repos"
)

func testConfig() config.Config {
	return config.Config{
		TemplatesDir: "../../../web/templates",
		StaticDir:    "../../../web/static",
		JWTSecret:    "test-secret",
	}
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return handlers.NewApp(db, handlers.Options{Config: testConfig()})
}

// client is a tiny cookie jar over app.Test.
type client struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func newClient(t *testing.T, app *fiber.App) *client {
	return &client{t: t, app: app, cookies: map[string]string{}}
}

func (c *client) do(req *http.Request) *http.Response {
	c.t.Helper()
	for name, val := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: val})
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Value == "" || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now())) {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
	return resp
}

func (c *client) get(path string, jsonAccept bool) *http.Response {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if jsonAccept {
		req.Header.Set("Accept", "application/json")
	}
	return c.do(req)
}

// post submits a form, adding the CSRF token (fetching one first if needed).
func (c *client) post(path string, form url.Values, jsonAccept bool) *http.Response {
	c.t.Helper()
	if c.cookies["csrf_"] == "" {
		c.get("/accounts/login", false)
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", c.cookies["csrf_"])
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if jsonAccept {
		req.Header.Set("Accept", "application/json")
	}
	return c.do(req)
}

// sendJSON sends a JSON body with the CSRF header, as browser scripts do.
func (c *client) sendJSON(method, path, payload string) *http.Response {
	c.t.Helper()
	if c.cookies["csrf_"] == "" {
		c.get("/accounts/login", false)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Csrf-Token", c.cookies["csrf_"])
	return c.do(req)
}

func (c *client) login(username string) {
	c.t.Helper()
	resp := c.post("/accounts/login", url.Values{"username": {username}, "password": {"Passw0rd!"}}, false)
	require.Equal(c.t, http.StatusFound, resp.StatusCode, "login as %s", username)
	require.NotEmpty(c.t, c.cookies["sid"])
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
