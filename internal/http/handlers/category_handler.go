package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/domain"
	"tienda/internal/log"
	"tienda/internal/services"
	"tienda/internal/validate"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

func (h *CategoryHandler) page(c *fiber.Ctx, status int, in services.CategoryInput, errs map[string]string) error {
	cats, err := h.Catalog.ListCategories()
	if err != nil {
		return err
	}
	if errs == nil {
		errs = map[string]string{}
	}
	return renderStatus(c, status, "categories", fiber.Map{"Categories": cats, "Form": in, "Errors": errs})
}

// GET /categories
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	return h.page(c, fiber.StatusOK, services.CategoryInput{}, nil)
}

// POST /categories
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var in services.CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	cat, err := h.Catalog.CreateCategory(principal(c), in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return h.page(c, fiber.StatusBadRequest, in, verr.Fields)
		}
		return fail(c, "access.denied.staff", err, nil)
	}
	log.Audit(c, "catalog.category.create", map[string]any{"category_id": cat.ID})
	setFlash(c, "success", "Category created.")
	return c.Redirect("/categories")
}

// GET /categories/:id/edit
func (h *CategoryHandler) EditForm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Category not found.")
	}
	cat, err := h.Catalog.GetCategory(id)
	if err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	in := services.CategoryInput{Name: cat.Name, Description: cat.Description}
	return render(c, "category_form", fiber.Map{"ID": id, "Form": in, "Errors": map[string]string{}})
}

// POST /categories/:id/edit
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Category not found.")
	}
	var in services.CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if _, err := h.Catalog.UpdateCategory(principal(c), id, in); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return renderStatus(c, fiber.StatusBadRequest, "category_form", fiber.Map{"ID": id, "Form": in, "Errors": verr.Fields})
		}
		return fail(c, "access.denied.staff", err, nil)
	}
	log.Audit(c, "catalog.category.update", map[string]any{"category_id": id})
	setFlash(c, "success", "Category updated.")
	return c.Redirect("/categories")
}

// POST /categories/:id/delete
func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Category not found.")
	}
	if err := h.Catalog.DeleteCategory(principal(c), id); err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	log.Audit(c, "catalog.category.delete", map[string]any{"category_id": id})
	setFlash(c, "success", "Category deleted.")
	return c.Redirect("/categories")
}
