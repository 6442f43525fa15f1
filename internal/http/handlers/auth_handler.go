package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"tienda/internal/domain"
	"tienda/internal/log"
	"tienda/internal/services"
)

const loginFailed = "Please enter a correct username and password."

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		h.setSID(c, sid, time.Time{})
	}
	return sid
}

func (h *AuthHandler) setSID(c *fiber.Ctx, sid string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  expires,
	})
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	if principal(c).Authenticated() {
		return c.Redirect(safeNext(c.Query("next")))
	}
	return render(c, "login", fiber.Map{"Next": c.Query("next"), "Username": ""})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	username := c.FormValue("username")
	pass := c.FormValue("password")
	next := c.FormValue("next")

	if username == "" || pass == "" {
		log.Security(c, "auth.login.fail", map[string]any{"username": username, "reason": "missing_fields"})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": loginFailed, "Username": username, "Next": next})
	}

	// Rotate the session id on login.
	sid := uuid.NewString()
	p, err := h.Auth.Login(sid, username, pass)
	if err != nil {
		if !errors.Is(err, services.ErrBadCreds) {
			return err
		}
		log.Security(c, "auth.login.fail", map[string]any{"username": username})
		return renderStatus(c, fiber.StatusUnauthorized, "login", fiber.Map{"Err": loginFailed, "Username": username, "Next": next})
	}
	h.setSID(c, sid, time.Time{})
	setPrincipal(c, p)

	log.Audit(c, "auth.login.success", map[string]any{"username": p.Username})
	return c.Redirect(safeNext(next))
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	uid := principal(c).UserID
	if err := h.Auth.Logout(sid); err != nil {
		return err
	}
	// Expire cookie
	h.setSID(c, "", time.Now().Add(-1*time.Hour))
	log.Audit(c, "auth.logout", map[string]any{"logged_out": uid})
	setPrincipal(c, domain.Principal{})
	return c.Redirect("/accounts/login")
}

func (h *AuthHandler) RegisterForm(c *fiber.Ctx) error {
	return render(c, "register", fiber.Map{"Form": services.RegisterInput{}, "Errors": map[string]string{}})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	p, err := h.Auth.Register(in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			log.Info(c, "auth.register.invalid", map[string]any{"fields": len(verr.Fields)})
			in.Password1, in.Password2 = "", ""
			return renderStatus(c, fiber.StatusBadRequest, "register", fiber.Map{"Form": in, "Errors": verr.Fields})
		}
		return err
	}

	sid := uuid.NewString()
	if err := h.Auth.Users.BindSession(sid, p.UserID); err != nil {
		return err
	}
	h.setSID(c, sid, time.Time{})
	setPrincipal(c, p)
	log.Audit(c, "auth.register", map[string]any{"username": p.Username, "customer_id": p.CustomerID})
	setFlash(c, "success", "Welcome, "+p.Name+"! Your account has been created.")
	return c.Redirect("/products")
}
