package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/domain"
	"tienda/internal/services"
	"tienda/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// GET /api/products/:id/stock
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid product id",
		})
	}
	avail, err := h.Inv.CheckAvailability(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return err
	}
	return c.JSON(avail)
}
