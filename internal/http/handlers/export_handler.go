package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/export"
	"tienda/internal/log"
	"tienda/internal/services"
)

type ExportHandler struct {
	Catalog *services.CatalogService
}

// GET /export/products.csv
func (h *ExportHandler) CSV(c *fiber.Ctx) error {
	products, err := h.Catalog.AllProducts()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.ProductsCSV(&buf, products); err != nil {
		return err
	}
	log.Audit(c, "export.csv", map[string]any{"rows": len(products)})
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="products.csv"`)
	return c.Send(buf.Bytes())
}

// GET /export/products.pdf
func (h *ExportHandler) PDF(c *fiber.Ctx) error {
	products, err := h.Catalog.AllProducts()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.ProductsPDF(&buf, products); err != nil {
		return err
	}
	log.Audit(c, "export.pdf", map[string]any{"rows": len(products)})
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="products.pdf"`)
	return c.Send(buf.Bytes())
}
