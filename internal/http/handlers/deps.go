package handlers

import (
	"time"

	"github.com/jmoiron/sqlx"

	"tienda/internal/apitoken"
	"tienda/internal/config"
	"tienda/internal/events"
	"tienda/internal/repos"
	"tienda/internal/services"
)

const tokenTTL = 24 * time.Hour

type Deps struct {
	Auth    *services.AuthService
	Catalog *services.CatalogService
	Orders  *services.OrderService

	AuthHandler      *AuthHandler
	ProductHandler   *ProductHandler
	CategoryHandler  *CategoryHandler
	SupplierHandler  *SupplierHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
	SearchHandler    *SearchHandler
	ExportHandler    *ExportHandler
	InventoryHandler *InventoryHandler
	APIHandler       *APIHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, pub events.Publisher) *Deps {
	authSvc := services.NewAuthService(db, apitoken.NewIssuer(cfg.JWTSecret, tokenTTL))
	catalogSvc := services.NewCatalogService(db)
	orderSvc := services.NewOrderService(db, pub)
	invSvc := services.NewInventoryService(repos.NewInventoryRepo(db))

	return &Deps{
		Auth:    authSvc,
		Catalog: catalogSvc,
		Orders:  orderSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		SupplierHandler:  &SupplierHandler{Catalog: catalogSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc, Catalog: catalogSvc},
		AdminHandler:     &AdminHandler{Orders: orderSvc},
		SearchHandler:    &SearchHandler{Catalog: catalogSvc},
		ExportHandler:    &ExportHandler{Catalog: catalogSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		APIHandler:       &APIHandler{Catalog: catalogSvc, Auth: authSvc},
	}
}
