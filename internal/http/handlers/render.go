package handlers

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/domain"
)

const flashCookie = "flash"

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["User"] = principal(c)
	// Pick up the token the CSRF middleware put into Locals
	tok, _ := c.Locals("csrf").(string)
	if tok == "" {
		// First request of a session: fall back to the cookie value.
		tok = c.Cookies("csrf_")
	}
	data["CSRFToken"] = tok
	if _, ok := data["Flash"]; !ok {
		if kind, msg := takeFlash(c); msg != "" {
			data["Flash"] = fiber.Map{"Kind": kind, "Message": msg}
		}
	}
	return c.Render(tmpl, data)
}

// renderStatus renders with an explicit status code.
func renderStatus(c *fiber.Ctx, status int, tmpl string, data fiber.Map) error {
	c.Status(status)
	return render(c, tmpl, data)
}

func notFound(c *fiber.Ctx, msg string) error {
	if wantsJSON(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
	}
	return renderStatus(c, fiber.StatusNotFound, "error", fiber.Map{"Message": msg})
}

// setFlash stores a one-shot message shown by the next rendered page.
func setFlash(c *fiber.Ctx, kind, msg string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + msg),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func takeFlash(c *fiber.Ctx) (kind, msg string) {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return "", ""
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	val, err := url.QueryUnescape(raw)
	if err != nil {
		return "", ""
	}
	kind, msg, _ = strings.Cut(val, "|")
	return kind, msg
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}

// principal returns the request's actor; anonymous when none was resolved.
func principal(c *fiber.Ctx) domain.Principal {
	p, _ := c.Locals("principal").(domain.Principal)
	return p
}
