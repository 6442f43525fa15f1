package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tienda/internal/log"
	"tienda/internal/services"
	"tienda/internal/validate"
)

type SearchHandler struct {
	Catalog *services.CatalogService
}

// GET /search?q=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	q := validate.Q(c.Query("q"))
	if q == "" {
		// Initial page load: show empty search without errors
		return render(c, "search", fiber.Map{"Q": "", "Products": nil, "Count": 0})
	}
	products, err := h.Catalog.Search(q)
	if err != nil {
		log.Error(c, "search.error", err, nil)
		return err
	}
	return render(c, "search", fiber.Map{"Q": q, "Products": products, "Count": len(products)})
}
