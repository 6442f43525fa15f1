package services

import (
	"tienda/internal/domain"
	"tienda/internal/repos"
)

type InventoryService struct {
	Inv *repos.InventoryRepo
}

func NewInventoryService(inv *repos.InventoryRepo) *InventoryService {
	return &InventoryService{Inv: inv}
}

// CheckAvailability converts qty to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(productID int64) (domain.Availability, error) {
	qty, err := s.Inv.Qty(productID)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.Availability{Status: domain.StockLevel(qty), Qty: qty}, nil
}
