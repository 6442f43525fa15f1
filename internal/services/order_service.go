package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tienda/internal/domain"
	"tienda/internal/events"
	applog "tienda/internal/log"
	"tienda/internal/repos"
)

// Line is one requested (product, quantity) pair.
type Line struct {
	ProductID int64
	Quantity  int
}

type OrderService struct {
	DB        *sqlx.DB
	Orders    *repos.OrderRepo
	Prods     *repos.ProductRepo
	Inv       *repos.InventoryRepo
	Customers *repos.CustomerRepo
	Events    events.Publisher
}

func NewOrderService(db *sqlx.DB, pub events.Publisher) *OrderService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &OrderService{
		DB:        db,
		Orders:    repos.NewOrderRepo(db),
		Prods:     repos.NewProductRepo(db),
		Inv:       repos.NewInventoryRepo(db),
		Customers: repos.NewCustomerRepo(db),
		Events:    pub,
	}
}

// MergeLines sums quantities of repeated products, keeping first-seen order.
func MergeLines(lines []Line) []Line {
	idx := map[int64]int{}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// ListCustomers lists the profiles staff may order for.
func (s *OrderService) ListCustomers(p domain.Principal) ([]domain.Customer, error) {
	if !p.IsStaff {
		return nil, domain.ErrPermissionDenied
	}
	return s.Customers.List()
}

// CreateOrder snapshots prices, takes stock and stores the order in one transaction.
// Non-staff principals always order for their own customer profile.
func (s *OrderService) CreateOrder(p domain.Principal, customerID int64, lines []Line) (domain.Order, error) {
	if !p.Authenticated() {
		return domain.Order{}, domain.ErrNotAuthenticated
	}
	if !p.IsStaff {
		if p.CustomerID == 0 {
			return domain.Order{}, domain.ErrNoCustomerProfile
		}
		customerID = p.CustomerID
	}

	verr := &domain.ValidationError{}
	if customerID == 0 {
		verr.Add("customer", "This field is required.")
	}
	lines = MergeLines(lines)
	if len(lines) == 0 {
		verr.Add("items", "Add at least one item.")
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			verr.Add("items", "Quantities must be at least 1.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Order{}, err
	}

	var orderID int64
	err := repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		if _, err := s.Customers.With(tx).Get(customerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("customer", "Select a valid choice.")
			}
			return err
		}
		orders, prods, inv := s.Orders.With(tx), s.Prods.With(tx), s.Inv.With(tx)

		o := domain.Order{CustomerID: customerID}
		if err := orders.Create(&o); err != nil {
			return err
		}
		items := make([]domain.OrderItem, 0, len(lines))
		for _, l := range lines {
			prod, err := prods.Get(l.ProductID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NewValidationError("items", "Select a valid product.")
				}
				return err
			}
			if err := inv.Decrement(prod.ID, l.Quantity); err != nil {
				return fmt.Errorf("%s: %w", prod.Name, err)
			}
			it := domain.OrderItem{OrderID: o.ID, ProductID: prod.ID, Quantity: l.Quantity, UnitPrice: prod.Price}
			if err := orders.InsertItem(&it); err != nil {
				return err
			}
			items = append(items, it)
		}
		orderID = o.ID
		return orders.SetTotal(o.ID, domain.SumLines(items))
	})
	if err != nil {
		return domain.Order{}, err
	}

	o, err := s.Orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	s.publish(events.OrderCreated, o, "")
	return o, nil
}

// ListOrders returns all orders for staff, otherwise only the principal's own.
func (s *OrderService) ListOrders(p domain.Principal) ([]domain.Order, error) {
	switch {
	case !p.Authenticated():
		return nil, domain.ErrNotAuthenticated
	case p.IsStaff:
		return s.Orders.ListAll()
	case p.CustomerID == 0:
		return []domain.Order{}, nil
	}
	return s.Orders.ListByCustomer(p.CustomerID)
}

func (s *OrderService) GetOrder(p domain.Principal, id int64) (domain.Order, error) {
	o, err := s.Orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if !p.CanViewOrder(o) {
		return domain.Order{}, domain.ErrPermissionDenied
	}
	return o, nil
}

// checkTransition enforces Pending -> Completed (staff) and Pending -> Canceled (staff or owner).
func checkTransition(p domain.Principal, from, to domain.OrderStatus) error {
	if !to.Valid() || to == domain.StatusPending || from.Terminal() {
		return fmt.Errorf("%s -> %s: %w", from.Label(), to.Label(), domain.ErrInvalidTransition)
	}
	if to == domain.StatusCompleted && !p.IsStaff {
		return domain.ErrPermissionDenied
	}
	return nil
}

// transition applies a checked status change inside tx, returning stock on cancel.
func (s *OrderService) transition(tx *sqlx.Tx, o domain.Order, to domain.OrderStatus) error {
	if to == domain.StatusCanceled {
		inv := s.Inv.With(tx)
		for _, it := range o.Items {
			if err := inv.Increment(it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
	}
	return s.Orders.With(tx).UpdateStatus(o.ID, to)
}

// SetStatus moves an order to status "to" if the policy allows it.
func (s *OrderService) SetStatus(p domain.Principal, id int64, to domain.OrderStatus) (domain.Order, error) {
	return s.UpdateOrder(p, id, 0, to)
}

// UpdateOrder applies the edit form: staff may reassign the customer of a
// pending order; status changes follow checkTransition. Zero values keep the
// current customer or status.
func (s *OrderService) UpdateOrder(p domain.Principal, id, customerID int64, status domain.OrderStatus) (domain.Order, error) {
	if !p.Authenticated() {
		return domain.Order{}, domain.ErrNotAuthenticated
	}
	var before domain.Order
	err := repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		orders := s.Orders.With(tx)
		o, err := orders.Get(id)
		if err != nil {
			return err
		}
		if !p.CanViewOrder(o) {
			return domain.ErrPermissionDenied
		}
		before = o

		if customerID != 0 && customerID != o.CustomerID {
			if !p.IsStaff {
				return domain.ErrPermissionDenied
			}
			if o.Status != domain.StatusPending {
				return fmt.Errorf("reassign %s order: %w", o.Status.Label(), domain.ErrInvalidTransition)
			}
			if _, err := s.Customers.With(tx).Get(customerID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NewValidationError("customer", "Select a valid choice.")
				}
				return err
			}
			if err := orders.UpdateCustomer(id, customerID); err != nil {
				return err
			}
		}

		if status != "" && status != o.Status {
			if err := checkTransition(p, o.Status, status); err != nil {
				return err
			}
			return s.transition(tx, o, status)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	o, err := s.Orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status != before.Status {
		s.publish(events.OrderStatusChanged, o, before.Status)
	}
	return o, nil
}

// CompleteOrders marks the pending orders among ids completed and returns how many changed.
func (s *OrderService) CompleteOrders(p domain.Principal, ids []int64) (int, error) {
	if !p.IsStaff {
		return 0, domain.ErrPermissionDenied
	}
	var done []int64
	err := repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		orders := s.Orders.With(tx)
		pending, err := orders.PendingIDs(ids)
		if err != nil {
			return err
		}
		for _, id := range pending {
			if err := orders.UpdateStatus(id, domain.StatusCompleted); err != nil {
				return err
			}
		}
		done = pending
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range done {
		if o, err := s.Orders.Get(id); err == nil {
			s.publish(events.OrderStatusChanged, o, domain.StatusPending)
		}
	}
	return len(done), nil
}

// ---------- Item mutation ----------

// modifiable loads the order in tx and checks the principal may change its items.
func (s *OrderService) modifiable(tx *sqlx.Tx, p domain.Principal, id int64) (domain.Order, error) {
	o, err := s.Orders.With(tx).Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if !p.CanViewOrder(o) {
		return domain.Order{}, domain.ErrPermissionDenied
	}
	if !p.CanModifyOrder(o) {
		return domain.Order{}, fmt.Errorf("edit %s order: %w", o.Status.Label(), domain.ErrInvalidTransition)
	}
	return o, nil
}

// recompute rewrites the stored total from the current items.
func (s *OrderService) recompute(tx *sqlx.Tx, orderID int64) error {
	orders := s.Orders.With(tx)
	items, err := orders.Items(orderID)
	if err != nil {
		return err
	}
	return orders.SetTotal(orderID, domain.SumLines(items))
}

// AddItem adds qty of a product, merging into an existing line for the same product.
func (s *OrderService) AddItem(p domain.Principal, orderID, productID int64, qty int) (domain.Order, error) {
	if qty < 1 {
		return domain.Order{}, domain.NewValidationError("quantity", "Ensure this value is greater than or equal to 1.")
	}
	err := repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		o, err := s.modifiable(tx, p, orderID)
		if err != nil {
			return err
		}
		prod, err := s.Prods.With(tx).Get(productID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewValidationError("product_id", "Select a valid product.")
			}
			return err
		}
		if err := s.Inv.With(tx).Decrement(prod.ID, qty); err != nil {
			return fmt.Errorf("%s: %w", prod.Name, err)
		}
		orders := s.Orders.With(tx)
		for _, it := range o.Items {
			if it.ProductID == productID {
				if err := orders.SetItemQuantity(it.ID, it.Quantity+qty); err != nil {
					return err
				}
				return s.recompute(tx, orderID)
			}
		}
		it := domain.OrderItem{OrderID: orderID, ProductID: prod.ID, Quantity: qty, UnitPrice: prod.Price}
		if err := orders.InsertItem(&it); err != nil {
			return err
		}
		return s.recompute(tx, orderID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return s.Orders.Get(orderID)
}

// UpdateItemQuantity sets a line's quantity, moving the difference in or out of stock.
func (s *OrderService) UpdateItemQuantity(p domain.Principal, orderID, itemID int64, qty int) (domain.Order, error) {
	if qty < 1 {
		return domain.Order{}, domain.NewValidationError("quantity", "Ensure this value is greater than or equal to 1.")
	}
	err := repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		if _, err := s.modifiable(tx, p, orderID); err != nil {
			return err
		}
		orders, inv := s.Orders.With(tx), s.Inv.With(tx)
		it, err := orders.Item(orderID, itemID)
		if err != nil {
			return err
		}
		switch delta := qty - it.Quantity; {
		case delta > 0:
			if err := inv.Decrement(it.ProductID, delta); err != nil {
				return fmt.Errorf("%s: %w", it.ProductName, err)
			}
		case delta < 0:
			if err := inv.Increment(it.ProductID, -delta); err != nil {
				return err
			}
		}
		if err := orders.SetItemQuantity(itemID, qty); err != nil {
			return err
		}
		return s.recompute(tx, orderID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return s.Orders.Get(orderID)
}

// RemoveItem deletes a line and returns its quantity to stock.
func (s *OrderService) RemoveItem(p domain.Principal, orderID, itemID int64) (domain.Order, error) {
	err := repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		if _, err := s.modifiable(tx, p, orderID); err != nil {
			return err
		}
		orders := s.Orders.With(tx)
		it, err := orders.Item(orderID, itemID)
		if err != nil {
			return err
		}
		if err := s.Inv.With(tx).Increment(it.ProductID, it.Quantity); err != nil {
			return err
		}
		if err := orders.DeleteItem(itemID); err != nil {
			return err
		}
		return s.recompute(tx, orderID)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return s.Orders.Get(orderID)
}

// publish is best effort: the order is already committed.
func (s *OrderService) publish(pattern string, o domain.Order, prev domain.OrderStatus) {
	ev := events.OrderEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		Previous:   string(prev),
		Total:      o.Total.StringFixed(2),
	}
	if err := s.Events.Publish(context.Background(), pattern, ev); err != nil {
		applog.Error(nil, "events.publish", err, map[string]any{"pattern": pattern, "order_id": o.ID})
	}
}
