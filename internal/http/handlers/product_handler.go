package handlers

import (
	"errors"
	"html/template"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"tienda/internal/domain"
	"tienda/internal/log"
	"tienda/internal/repos"
	"tienda/internal/services"
	"tienda/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

// productJSON is the wire shape shared by the list negotiation and /api/products.
type productJSON struct {
	ID       int64   `json:"id"`
	SKU      *string `json:"sku"`
	Name     string  `json:"name"`
	Category *string `json:"category"`
	Supplier *string `json:"supplier"`
	Price    string  `json:"price"`
	Stock    int     `json:"stock"`
}

func toJSON(products []domain.Product) []productJSON {
	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		j := productJSON{ID: p.ID, Name: p.Name, Price: p.Price.StringFixed(2), Stock: p.Stock}
		if p.SKU.Valid {
			j.SKU = &p.SKU.String
		}
		if p.CategoryName.Valid {
			j.Category = &p.CategoryName.String
		}
		if p.SupplierName.Valid {
			j.Supplier = &p.SupplierName.String
		}
		out = append(out, j)
	}
	return out
}

// filterFromQuery ignores malformed ids and malformed or negative price bounds.
func filterFromQuery(c *fiber.Ctx) repos.ProductFilter {
	f := repos.ProductFilter{Q: validate.Q(c.Query("q"))}
	if id, ok := validate.ID(c.Query("category")); ok {
		f.CategoryID = id
	}
	if id, ok := validate.ID(c.Query("supplier")); ok {
		f.SupplierID = id
	}
	if d, ok := validate.Decimal(c.Query("pmin")); ok && !d.IsNegative() {
		f.PriceMin = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	if d, ok := validate.Decimal(c.Query("pmax")); ok && !d.IsNegative() {
		f.PriceMax = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return f
}

// GET /products
func (h *ProductHandler) List(c *fiber.Ctx) error {
	f := filterFromQuery(c)
	page, err := h.Catalog.ListProducts(f, validate.Page(c.Query("page")))
	if err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(fiber.Map{
			"products": toJSON(page.Products),
			"page":     page.Page,
			"pages":    page.Pages,
			"total":    page.Total,
		})
	}
	cats, err := h.Catalog.ListCategories()
	if err != nil {
		return err
	}
	sups, err := h.Catalog.ListSuppliers()
	if err != nil {
		return err
	}
	return render(c, "products", fiber.Map{
		"Page":       page,
		"Categories": cats,
		"Suppliers":  sups,
		"Q":          f.Q,
		"Category":   f.CategoryID,
		"Supplier":   f.SupplierID,
		"PMin":       c.Query("pmin"),
		"PMax":       c.Query("pmax"),
		"Query":      filterQuery(c),
	})
}

// filterQuery rebuilds the active filters for pagination links.
func filterQuery(c *fiber.Ctx) template.URL {
	v := url.Values{}
	for _, k := range []string{"q", "category", "supplier", "pmin", "pmax"} {
		if s := c.Query(k); s != "" {
			v.Set(k, s)
		}
	}
	if len(v) == 0 {
		return ""
	}
	return template.URL("&" + v.Encode())
}

// GET /products/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "This product does not exist.")
	}
	p, err := h.Catalog.GetProduct(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(c, "This product does not exist.")
		}
		return err
	}
	return render(c, "product_detail", fiber.Map{"P": p})
}

func (h *ProductHandler) renderForm(c *fiber.Ctx, status int, id int64, in services.ProductInput, errs map[string]string) error {
	cats, err := h.Catalog.ListCategories()
	if err != nil {
		return err
	}
	sups, err := h.Catalog.ListSuppliers()
	if err != nil {
		return err
	}
	if errs == nil {
		errs = map[string]string{}
	}
	return renderStatus(c, status, "product_form", fiber.Map{
		"ID":         id,
		"Form":       in,
		"Errors":     errs,
		"Categories": cats,
		"Suppliers":  sups,
	})
}

func inputFromProduct(p domain.Product) services.ProductInput {
	in := services.ProductInput{
		SKU:         p.SKU.String,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       strconv.Itoa(p.Stock),
	}
	if p.CategoryID.Valid {
		in.CategoryID = strconv.FormatInt(p.CategoryID.Int64, 10)
	}
	if p.SupplierID.Valid {
		in.SupplierID = strconv.FormatInt(p.SupplierID.Int64, 10)
	}
	return in
}

// GET /products/new
func (h *ProductHandler) NewForm(c *fiber.Ctx) error {
	return h.renderForm(c, fiber.StatusOK, 0, services.ProductInput{Stock: "0"}, nil)
}

// POST /products
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	p, err := h.Catalog.CreateProduct(principal(c), in)
	if err != nil {
		return h.saveFailed(c, 0, in, err)
	}
	log.Audit(c, "catalog.product.create", map[string]any{"product_id": p.ID, "price": p.Price.StringFixed(2)})
	if wantsJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(toJSON([]domain.Product{p})[0])
	}
	setFlash(c, "success", "Product created.")
	return c.Redirect("/products/" + strconv.FormatInt(p.ID, 10))
}

// GET /products/:id/edit
func (h *ProductHandler) EditForm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "This product does not exist.")
	}
	p, err := h.Catalog.GetProduct(id)
	if err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	return h.renderForm(c, fiber.StatusOK, id, inputFromProduct(p), nil)
}

// POST /products/:id/edit, PUT|PATCH /products/:id
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "This product does not exist.")
	}
	var in services.ProductInput
	if c.Method() == fiber.MethodPatch {
		// PATCH starts from the stored values.
		cur, err := h.Catalog.GetProduct(id)
		if err != nil {
			return fail(c, "access.denied.staff", err, nil)
		}
		in = inputFromProduct(cur)
	}
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	p, err := h.Catalog.UpdateProduct(principal(c), id, in)
	if err != nil {
		return h.saveFailed(c, id, in, err)
	}
	log.Audit(c, "catalog.product.update", map[string]any{"product_id": p.ID, "price": p.Price.StringFixed(2), "stock": p.Stock})
	if wantsJSON(c) {
		return c.JSON(toJSON([]domain.Product{p})[0])
	}
	setFlash(c, "success", "Product updated.")
	return c.Redirect("/products/" + strconv.FormatInt(p.ID, 10))
}

func (h *ProductHandler) saveFailed(c *fiber.Ctx, id int64, in services.ProductInput, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if wantsJSON(c) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": verr.Fields})
		}
		return h.renderForm(c, fiber.StatusBadRequest, id, in, verr.Fields)
	}
	return fail(c, "access.denied.staff", err, map[string]any{"product_id": id})
}

// GET /products/:id/delete
func (h *ProductHandler) ConfirmDelete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "This product does not exist.")
	}
	p, err := h.Catalog.GetProduct(id)
	if err != nil {
		return fail(c, "access.denied.staff", err, nil)
	}
	return render(c, "product_confirm_delete", fiber.Map{"P": p})
}

// POST /products/:id/delete, DELETE /products/:id
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "This product does not exist.")
	}
	err := h.Catalog.DeleteProduct(principal(c), id)
	if errors.Is(err, domain.ErrReferentialIntegrity) {
		log.Security(c, "catalog.product.delete.blocked", map[string]any{"product_id": id})
		msg := "This product appears on existing orders and cannot be deleted."
		if wantsJSON(c) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
		}
		setFlash(c, "error", msg)
		return c.Redirect("/products/" + strconv.FormatInt(id, 10))
	}
	if err != nil {
		return fail(c, "access.denied.staff", err, map[string]any{"product_id": id})
	}
	log.Audit(c, "catalog.product.delete", map[string]any{"product_id": id})
	if wantsJSON(c) {
		return c.SendStatus(fiber.StatusNoContent)
	}
	setFlash(c, "success", "Product deleted.")
	return c.Redirect("/products")
}
