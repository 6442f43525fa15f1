package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"

	"tienda/internal/config"
	"tienda/internal/events"
	applog "tienda/internal/log"
)

const genericError = "Something went wrong. Please try again."

type Options struct {
	Config config.Config
	Events events.Publisher
	// Storage backs the limiter and CSRF middlewares; nil keeps them in memory.
	Storage fiber.Storage
}

// ErrorHandler logs unexpected errors and renders a message without internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := genericError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch {
		case code == fiber.StatusNotFound:
			msg = "Page not found."
		case code < fiber.StatusInternalServerError:
			msg = fe.Message
		}
	}
	if code >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	if wantsJSON(c) {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	if rerr := renderStatus(c, code, "error", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// NewApp wires middleware and routes.
func NewApp(db *sqlx.DB, opts Options) *fiber.App {
	cfg := opts.Config
	deps := NewDeps(db, cfg, opts.Events)

	engine := html.New(cfg.TemplatesDir, ".html")
	app := fiber.New(fiber.Config{
		AppName:      "tienda",
		Views:        engine,
		ErrorHandler: ErrorHandler,
		BodyLimit:    1 << 20, // 1 MiB
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    opts.Storage,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/static/")
		},
	}))
	app.Use(LoadPrincipal(deps.Auth))
	app.Use(csrf.New(csrf.Config{
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		ContextKey:     "csrf",
		Storage:        opts.Storage,
		// Forms post the token as "csrf"; scripts send the header.
		Extractor: func(c *fiber.Ctx) (string, error) {
			if tok, err := csrf.CsrfFromForm("csrf")(c); err == nil {
				return tok, nil
			}
			return csrf.CsrfFromHeader("X-Csrf-Token")(c)
		},
		// JSON API calls authenticate with a bearer token, not the ambient cookie.
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
			const msg = "Security check failed. Please refresh and try again."
			if wantsJSON(c) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msg})
			}
			return renderStatus(c, fiber.StatusForbidden, "error", fiber.Map{"Message": msg})
		},
	}))

	app.Static("/static", cfg.StaticDir)

	user := RequireUser()
	staff := RequireStaff()

	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/products") })
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	// Catalog (signed-in users browse, staff write)
	p := deps.ProductHandler
	app.Get("/products", user, p.List)
	app.Get("/products/new", staff, p.NewForm)
	app.Post("/products", staff, p.Create)
	app.Get("/products/:id", user, p.Detail)
	app.Get("/products/:id/edit", staff, p.EditForm)
	app.Post("/products/:id/edit", staff, p.Update)
	app.Put("/products/:id", staff, p.Update)
	app.Patch("/products/:id", staff, p.Update)
	app.Get("/products/:id/delete", staff, p.ConfirmDelete)
	app.Post("/products/:id/delete", staff, p.Delete)
	app.Delete("/products/:id", staff, p.Delete)

	cat := deps.CategoryHandler
	app.Get("/categories", staff, cat.List)
	app.Post("/categories", staff, cat.Create)
	app.Get("/categories/:id/edit", staff, cat.EditForm)
	app.Post("/categories/:id/edit", staff, cat.Update)
	app.Post("/categories/:id/delete", staff, cat.Delete)

	sup := deps.SupplierHandler
	app.Get("/suppliers", staff, sup.List)
	app.Post("/suppliers", staff, sup.Create)
	app.Get("/suppliers/:id/edit", staff, sup.EditForm)
	app.Post("/suppliers/:id/edit", staff, sup.Update)
	app.Post("/suppliers/:id/delete", staff, sup.Delete)

	// Orders
	o := deps.OrderHandler
	app.Get("/orders", user, o.List)
	app.Get("/orders/new", user, o.NewForm)
	app.Post("/orders/complete", staff, deps.AdminHandler.CompleteOrders)
	app.Post("/orders", user, o.Create)
	app.Get("/orders/:id", user, o.Detail)
	app.Get("/orders/:id/edit", user, o.EditForm)
	app.Post("/orders/:id/edit", user, o.Update)
	app.Patch("/orders/:id", user, o.Update)
	app.Post("/orders/:id/cancel", user, o.Cancel)
	app.Post("/orders/:id/items", user, o.AddItem)
	app.Post("/orders/:id/items/:item", user, o.UpdateItem)
	app.Post("/orders/:id/items/:item/delete", user, o.RemoveItem)

	// Search & export
	app.Get("/search", user, limiter.New(limiter.Config{Max: 30, Expiration: time.Minute, Storage: opts.Storage}), deps.SearchHandler.Search)
	app.Get("/export/products.csv", staff, deps.ExportHandler.CSV)
	app.Get("/export/products.pdf", staff, deps.ExportHandler.PDF)

	// Accounts (failed logins throttled)
	a := deps.AuthHandler
	loginLimiter := limiter.New(limiter.Config{
		Max:                    5,
		Expiration:             10 * time.Minute,
		SkipSuccessfulRequests: true,
		Storage:                opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			if wantsJSON(c) {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many attempts"})
			}
			return renderStatus(c, fiber.StatusTooManyRequests, "login", fiber.Map{"Err": "Too many attempts. Please try again later.", "Username": c.FormValue("username"), "Next": c.FormValue("next")})
		},
	})
	app.Get("/accounts/login", a.LoginForm)
	app.Post("/accounts/login", loginLimiter, a.Login)
	app.Post("/accounts/logout", a.Logout)
	app.Get("/accounts/register", a.RegisterForm)
	app.Post("/accounts/register", a.Register)

	// API
	api := app.Group("/api")
	api.Post("/token", loginLimiter, deps.APIHandler.Token)
	api.Get("/products", RequireAPIUser(deps.Auth), deps.APIHandler.Products)
	stockLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 30 * time.Second,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|stock"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.stock.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/products/:id/stock", stockLimiter, deps.InventoryHandler.Check)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		return notFound(c, "Page not found.")
	})
	return app
}
