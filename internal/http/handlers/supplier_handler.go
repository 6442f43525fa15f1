package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/domain"
	"tienda/internal/log"
	"tienda/internal/services"
	"tienda/internal/validate"
)

type SupplierHandler struct {
	Catalog *services.CatalogService
}

func (h *SupplierHandler) page(c *fiber.Ctx, status int, in services.SupplierInput, errs map[string]string) error {
	sups, err := h.Catalog.ListSuppliers()
	if err != nil {
		return err
	}
	if errs == nil {
		errs = map[string]string{}
	}
	return renderStatus(c, status, "suppliers", fiber.Map{"Suppliers": sups, "Form": in, "Errors": errs})
}

// GET /suppliers
func (h *SupplierHandler) List(c *fiber.Ctx) error {
	return h.page(c, fiber.StatusOK, services.SupplierInput{}, nil)
}

// POST /suppliers
func (h *SupplierHandler) Create(c *fiber.Ctx) error {
	var in services.SupplierInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	sup, err := h.Catalog.CreateSupplier(principal(c), in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return h.page(c, fiber.StatusBadRequest, in, verr.Fields)
		}
		return fail(c, "access.denied.staff", err, nil)
	}
	log.Audit(c, "catalog.supplier.create", map[string]any{"supplier_id": sup.ID})
	setFlash(c, "success", "Supplier created.")
	return c.Redirect("/suppliers")
}

// GET /suppliers/:id/edit
func (h *SupplierHandler) EditForm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Supplier not found.")
	}
	sup, err := h.Catalog.GetSupplier(id)
	if err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	in := services.SupplierInput{Name: sup.Name, ContactEmail: sup.ContactEmail, Phone: sup.Phone}
	return render(c, "supplier_form", fiber.Map{"ID": id, "Form": in, "Errors": map[string]string{}})
}

// POST /suppliers/:id/edit
func (h *SupplierHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Supplier not found.")
	}
	var in services.SupplierInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if _, err := h.Catalog.UpdateSupplier(principal(c), id, in); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return renderStatus(c, fiber.StatusBadRequest, "supplier_form", fiber.Map{"ID": id, "Form": in, "Errors": verr.Fields})
		}
		return fail(c, "access.denied.staff", err, nil)
	}
	log.Audit(c, "catalog.supplier.update", map[string]any{"supplier_id": id})
	setFlash(c, "success", "Supplier updated.")
	return c.Redirect("/suppliers")
}

// POST /suppliers/:id/delete
func (h *SupplierHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Supplier not found.")
	}
	if err := h.Catalog.DeleteSupplier(principal(c), id); err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	log.Audit(c, "catalog.supplier.delete", map[string]any{"supplier_id": id})
	setFlash(c, "success", "Supplier deleted.")
	return c.Redirect("/suppliers")
}
