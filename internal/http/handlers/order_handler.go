package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tienda/internal/domain"
	applog "tienda/internal/log"
	"tienda/internal/services"
	"tienda/internal/validate"
)

// blank rows offered on the new-order form
const formLines = 3

type OrderHandler struct {
	Orders  *services.OrderService
	Catalog *services.CatalogService
}

func orderURL(id int64) string { return "/orders/" + strconv.FormatInt(id, 10) }

// orderFail handles the order-specific errors, then defers to fail.
func orderFail(c *fiber.Ctx, id int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return deny(c, "access.denied.order", map[string]any{"order_id": id})
	case errors.Is(err, domain.ErrInvalidTransition):
		applog.Info(c, "order.transition.rejected", map[string]any{"order_id": id, "reason": err.Error()})
		msg := "This order can no longer be changed."
		if wantsJSON(c) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
		}
		setFlash(c, "error", msg)
		return c.Redirect(orderURL(id))
	case errors.Is(err, domain.ErrInsufficientStock):
		msg := "Not enough stock: " + err.Error()
		if wantsJSON(c) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
		}
		setFlash(c, "error", msg)
		return c.Redirect(orderURL(id))
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if wantsJSON(c) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": verr.Fields})
		}
		setFlash(c, "error", verr.Error())
		return c.Redirect(orderURL(id))
	}
	return fail(c, "access.denied.order", err, map[string]any{"order_id": id})
}

// GET /orders
func (h *OrderHandler) List(c *fiber.Ctx) error {
	orders, err := h.Orders.ListOrders(principal(c))
	if err != nil {
		return fail(c, "access.denied.order", err, nil)
	}
	return render(c, "orders", fiber.Map{"Orders": orders})
}

// parseLines reads the repeated product_id / quantity form fields. Blank rows are skipped.
func parseLines(c *fiber.Ctx) ([]services.Line, *domain.ValidationError) {
	verr := &domain.ValidationError{}
	args := c.Request().PostArgs()
	pids := args.PeekMulti("product_id")
	qtys := args.PeekMulti("quantity")
	var lines []services.Line
	for i, raw := range pids {
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}
		pid, ok := validate.ID(string(raw))
		if !ok {
			verr.Add("items", "Select a valid product.")
			continue
		}
		q := "1"
		if i < len(qtys) && strings.TrimSpace(string(qtys[i])) != "" {
			q = string(qtys[i])
		}
		qty, ok := validate.Quantity(q)
		if !ok {
			verr.Add("items", "Enter a quantity between 1 and 9999.")
			continue
		}
		lines = append(lines, services.Line{ProductID: pid, Quantity: qty})
	}
	return lines, verr
}

func (h *OrderHandler) renderForm(c *fiber.Ctx, status int, customerID int64, errs map[string]string) error {
	p := principal(c)
	products, err := h.Catalog.AllProducts()
	if err != nil {
		return err
	}
	data := fiber.Map{
		"Products": products,
		"Lines":    make([]struct{}, formLines),
		"Customer": customerID,
		"Errors":   errs,
	}
	if p.IsStaff {
		customers, err := h.Orders.ListCustomers(p)
		if err != nil {
			return err
		}
		data["Customers"] = customers
	}
	if errs == nil {
		data["Errors"] = map[string]string{}
	}
	return renderStatus(c, status, "order_form", data)
}

// GET /orders/new
func (h *OrderHandler) NewForm(c *fiber.Ctx) error {
	p := principal(c)
	if !p.IsStaff && p.CustomerID == 0 {
		setFlash(c, "error", "Your account has no customer profile.")
		return c.Redirect("/orders")
	}
	return h.renderForm(c, fiber.StatusOK, 0, nil)
}

// POST /orders
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	p := principal(c)
	lines, verr := parseLines(c)
	var customerID int64
	if raw := c.FormValue("customer"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			verr.Add("customer", "Select a valid choice.")
		}
		customerID = id
	}
	if err := verr.OrNil(); err != nil {
		return h.renderForm(c, fiber.StatusBadRequest, customerID, verr.Fields)
	}

	o, err := h.Orders.CreateOrder(p, customerID, lines)
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			return h.renderForm(c, fiber.StatusBadRequest, customerID, ve.Fields)
		case errors.Is(err, domain.ErrInsufficientStock):
			return h.renderForm(c, fiber.StatusBadRequest, customerID, map[string]string{"items": "Not enough stock: " + err.Error()})
		case errors.Is(err, domain.ErrNoCustomerProfile):
			setFlash(c, "error", "Your account has no customer profile.")
			return c.Redirect("/orders")
		}
		return fail(c, "access.denied.order", err, nil)
	}
	applog.Audit(c, "order.create", map[string]any{"order_id": o.ID, "customer_id": o.CustomerID, "total": o.Total.StringFixed(2), "items": len(o.Items)})
	setFlash(c, "success", "Order created.")
	return c.Redirect(orderURL(o.ID))
}

// GET /orders/:id
func (h *OrderHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	p := principal(c)
	o, err := h.Orders.GetOrder(p, id)
	if err != nil {
		return orderFail(c, id, err)
	}
	data := fiber.Map{"Order": o, "CanModify": p.CanModifyOrder(o)}
	if p.CanModifyOrder(o) {
		products, err := h.Catalog.AllProducts()
		if err != nil {
			return err
		}
		data["Products"] = products
	}
	return render(c, "order_detail", data)
}

// GET /orders/:id/edit
func (h *OrderHandler) EditForm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	p := principal(c)
	o, err := h.Orders.GetOrder(p, id)
	if err != nil {
		return orderFail(c, id, err)
	}
	data := fiber.Map{"Order": o, "Statuses": []domain.OrderStatus{domain.StatusPending, domain.StatusCompleted, domain.StatusCanceled}}
	if p.IsStaff {
		customers, err := h.Orders.ListCustomers(p)
		if err != nil {
			return err
		}
		data["Customers"] = customers
	}
	return render(c, "order_edit", data)
}

// orderUpdate is the edit form or a JSON body. Forms send the customer id as text.
type orderUpdate struct {
	Customer   string `form:"customer" json:"-"`
	CustomerID int64  `form:"-" json:"customer"`
	Status     string `form:"status" json:"status"`
}

// POST /orders/:id/edit, PATCH /orders/:id
func (h *OrderHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	var in orderUpdate
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	customerID := in.CustomerID
	if customerID < 0 {
		return orderFail(c, id, domain.NewValidationError("customer", "Select a valid choice."))
	}
	if in.Customer != "" {
		if customerID, ok = validate.ID(in.Customer); !ok {
			return orderFail(c, id, domain.NewValidationError("customer", "Select a valid choice."))
		}
	}
	status := domain.OrderStatus(strings.TrimSpace(in.Status))
	if status != "" && !status.Valid() {
		return orderFail(c, id, domain.NewValidationError("status", "Select a valid choice."))
	}

	o, err := h.Orders.UpdateOrder(principal(c), id, customerID, status)
	if err != nil {
		return orderFail(c, id, err)
	}
	applog.Audit(c, "order.status", map[string]any{"order_id": id, "status": string(o.Status), "customer_id": o.CustomerID})
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"id": o.ID, "status": o.Status.Label(), "total": o.Total.StringFixed(2), "customer_id": o.CustomerID})
	}
	setFlash(c, "success", "Order updated.")
	return c.Redirect(orderURL(id))
}

// POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	if _, err := h.Orders.SetStatus(principal(c), id, domain.StatusCanceled); err != nil {
		return orderFail(c, id, err)
	}
	applog.Audit(c, "order.status", map[string]any{"order_id": id, "status": string(domain.StatusCanceled)})
	setFlash(c, "success", "Order canceled.")
	return c.Redirect(orderURL(id))
}

// POST /orders/:id/items
func (h *OrderHandler) AddItem(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	pid, ok := validate.ID(c.FormValue("product_id"))
	if !ok {
		return orderFail(c, id, domain.NewValidationError("product_id", "Select a valid product."))
	}
	qty, ok := validate.Quantity(c.FormValue("quantity", "1"))
	if !ok {
		return orderFail(c, id, domain.NewValidationError("quantity", "Enter a quantity between 1 and 9999."))
	}
	o, err := h.Orders.AddItem(principal(c), id, pid, qty)
	if err != nil {
		return orderFail(c, id, err)
	}
	applog.Audit(c, "order.items.add", map[string]any{"order_id": id, "product_id": pid, "quantity": qty, "total": o.Total.StringFixed(2)})
	return c.Redirect(orderURL(id))
}

// POST /orders/:id/items/:item
func (h *OrderHandler) UpdateItem(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	itemID, ok := validate.ID(c.Params("item"))
	if !ok {
		return notFound(c, "Order item not found.")
	}
	qty, ok := validate.Quantity(c.FormValue("quantity"))
	if !ok {
		return orderFail(c, id, domain.NewValidationError("quantity", "Enter a quantity between 1 and 9999."))
	}
	o, err := h.Orders.UpdateItemQuantity(principal(c), id, itemID, qty)
	if err != nil {
		return orderFail(c, id, err)
	}
	applog.Audit(c, "order.items.update", map[string]any{"order_id": id, "item_id": itemID, "quantity": qty, "total": o.Total.StringFixed(2)})
	return c.Redirect(orderURL(id))
}

// POST /orders/:id/items/:item/delete
func (h *OrderHandler) RemoveItem(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found.")
	}
	itemID, ok := validate.ID(c.Params("item"))
	if !ok {
		return notFound(c, "Order item not found.")
	}
	o, err := h.Orders.RemoveItem(principal(c), id, itemID)
	if err != nil {
		return orderFail(c, id, err)
	}
	applog.Audit(c, "order.items.remove", map[string]any{"order_id": id, "item_id": itemID, "total": o.Total.StringFixed(2)})
	return c.Redirect(orderURL(id))
}
