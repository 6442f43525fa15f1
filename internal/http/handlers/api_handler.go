package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/log"
	"tienda/internal/services"
)

type APIHandler struct {
	Catalog *services.CatalogService
	Auth    *services.AuthService
}

// GET /api/products
func (h *APIHandler) Products(c *fiber.Ctx) error {
	products, err := h.Catalog.AllProducts()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"products": toJSON(products)})
}

type tokenRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// POST /api/token
func (h *APIHandler) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username and password are required"})
	}
	tok, err := h.Auth.IssueToken(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrBadCreds) {
			log.Security(c, "auth.token.fail", map[string]any{"username": req.Username})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}
		return err
	}
	log.Audit(c, "auth.token.issue", map[string]any{"username": req.Username})
	return c.JSON(fiber.Map{"token": tok})
}
