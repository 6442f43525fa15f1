package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	applog "tienda/internal/log"
	"tienda/internal/services"
	"tienda/internal/validate"
)

// AdminHandler holds staff-only bulk actions.
type AdminHandler struct {
	Orders *services.OrderService
}

// POST /orders/complete
func (h *AdminHandler) CompleteOrders(c *fiber.Ctx) error {
	var ids []int64
	for _, raw := range c.Request().PostArgs().PeekMulti("order") {
		if id, ok := validate.ID(string(raw)); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		setFlash(c, "error", "Select at least one order.")
		return c.Redirect("/orders")
	}
	n, err := h.Orders.CompleteOrders(principal(c), ids)
	if err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	applog.Audit(c, "order.status.bulk", map[string]any{"requested": len(ids), "completed": n})
	setFlash(c, "success", fmt.Sprintf("%d order(s) marked as completed.", n))
	return c.Redirect("/orders")
}
