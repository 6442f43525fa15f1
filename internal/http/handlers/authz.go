package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/apitoken"
	"tienda/internal/domain"
	applog "tienda/internal/log"
	"tienda/internal/services"
)

const deniedMessage = "You do not have permission to perform this action."

func setPrincipal(c *fiber.Ctx, p domain.Principal) {
	c.Locals("principal", p)
	c.Locals("user_id", p.UserID)
}

// LoadPrincipal resolves the session cookie into the request's principal.
func LoadPrincipal(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.CurrentPrincipal(c.Cookies("sid"))
		if err != nil {
			return err
		}
		setPrincipal(c, p)
		return c.Next()
	}
}

// RequireUser redirects anonymous visitors to the login form, remembering where they were going.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if principal(c).Authenticated() {
			return c.Next()
		}
		if wantsJSON(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		return c.Redirect("/accounts/login?next=" + url.QueryEscape(c.OriginalURL()))
	}
}

// RequireStaff enforces that the principal may manage the catalog.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := principal(c)
		if !p.Authenticated() {
			return RequireUser()(c)
		}
		if !p.CanManageCatalog() {
			return deny(c, "access.denied.staff", nil)
		}
		return c.Next()
	}
}

// RequireAPIUser accepts a session or an "Authorization: Bearer <jwt>" header.
func RequireAPIUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if principal(c).Authenticated() {
			return c.Next()
		}
		raw := c.Get(fiber.HeaderAuthorization)
		tok, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": apitoken.ErrMissingToken.Error()})
		}
		p, err := auth.TokenPrincipal(strings.TrimSpace(tok))
		if err != nil {
			if errors.Is(err, apitoken.ErrInvalidToken) {
				applog.Security(c, "auth.token.invalid", nil)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
			}
			return err
		}
		setPrincipal(c, p)
		return c.Next()
	}
}

// deny logs the refusal, then flashes and redirects (HTML) or answers 403 (JSON).
func deny(c *fiber.Ctx, action string, fields map[string]any) error {
	applog.Security(c, action, fields)
	if wantsJSON(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": deniedMessage})
	}
	setFlash(c, "error", deniedMessage)
	return c.Redirect("/products")
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/products"
	}
	return next
}

// fail maps domain errors to responses; anything unexpected goes to the ErrorHandler.
func fail(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return notFound(c, "Not found.")
	case errors.Is(err, domain.ErrPermissionDenied):
		return deny(c, action, fields)
	case errors.Is(err, domain.ErrNotAuthenticated):
		return RequireUser()(c)
	}
	return err
}
