package domain

// Principal is the actor behind a request. The zero value is anonymous.
type Principal struct {
	UserID     int64
	Username   string
	Name       string
	IsStaff    bool
	CustomerID int64 // 0 when the user has no customer profile
}

func (p Principal) Authenticated() bool { return p.UserID != 0 }

// CanManageCatalog reports whether p may create, edit or delete catalog records.
func (p Principal) CanManageCatalog() bool {
	return p.Authenticated() && p.IsStaff
}

// CanViewOrder reports whether p is staff or the order's customer.
func (p Principal) CanViewOrder(o Order) bool {
	if !p.Authenticated() {
		return false
	}
	if p.IsStaff {
		return true
	}
	return p.CustomerID != 0 && p.CustomerID == o.CustomerID
}

// CanModifyOrder additionally requires the order to still be pending.
func (p Principal) CanModifyOrder(o Order) bool {
	return p.CanViewOrder(o) && o.Status == StatusPending
}
