package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"tienda/internal/domain"
	"tienda/internal/repos"
	"tienda/internal/validate"
)

const (
	PageSize    = 10
	SearchLimit = 20
)

// maxPrice bounds NUMERIC(10,2).
var maxPrice = decimal.New(1, 8)

type CatalogService struct {
	DB    *sqlx.DB
	Cats  *repos.CategoryRepo
	Sups  *repos.SupplierRepo
	Prods *repos.ProductRepo
}

func NewCatalogService(db *sqlx.DB) *CatalogService {
	return &CatalogService{
		DB:    db,
		Cats:  repos.NewCategoryRepo(db),
		Sups:  repos.NewSupplierRepo(db),
		Prods: repos.NewProductRepo(db),
	}
}

// ProductPage is one page of a filtered product listing.
type ProductPage struct {
	Products []domain.Product
	Page     int
	Pages    int
	Total    int
}

func (p ProductPage) HasPrev() bool { return p.Page > 1 }
func (p ProductPage) HasNext() bool { return p.Page < p.Pages }
func (p ProductPage) Prev() int     { return p.Page - 1 }
func (p ProductPage) Next() int     { return p.Page + 1 }

// ProductInput is the product form as submitted.
type ProductInput struct {
	SKU         string `form:"sku" json:"sku" validate:"max=30"`
	Name        string `form:"name" json:"name" validate:"required,max=200"`
	Description string `form:"description" json:"description"`
	CategoryID  string `form:"category" json:"category"`
	SupplierID  string `form:"supplier" json:"supplier"`
	Price       string `form:"price" json:"price" validate:"required"`
	Stock       string `form:"stock" json:"stock"`
}

type CategoryInput struct {
	Name        string `form:"name" json:"name" validate:"required,max=100"`
	Description string `form:"description" json:"description"`
}

type SupplierInput struct {
	Name         string `form:"name" json:"name" validate:"required,max=120"`
	ContactEmail string `form:"contact_email" json:"contact_email" validate:"omitempty,email,max=254"`
	Phone        string `form:"phone" json:"phone" validate:"max=20,phone"`
}

// ListProducts applies f and clamps page into 1..last.
func (s *CatalogService) ListProducts(f repos.ProductFilter, page int) (ProductPage, error) {
	total, err := s.Prods.Count(f)
	if err != nil {
		return ProductPage{}, err
	}
	pages := (total + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	items, err := s.Prods.List(f, PageSize, (page-1)*PageSize)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{Products: items, Page: page, Pages: pages, Total: total}, nil
}

func (s *CatalogService) GetProduct(id int64) (domain.Product, error) {
	return s.Prods.Get(id)
}

// AllProducts returns the full catalog ordered by id.
func (s *CatalogService) AllProducts() ([]domain.Product, error) {
	return s.Prods.All()
}

// Search returns up to SearchLimit products whose name contains q.
func (s *CatalogService) Search(q string) ([]domain.Product, error) {
	return s.Prods.Search(validate.Q(q), SearchLimit)
}

func (s *CatalogService) CreateProduct(p domain.Principal, in ProductInput) (domain.Product, error) {
	if !p.CanManageCatalog() {
		return domain.Product{}, domain.ErrPermissionDenied
	}
	prod, err := s.productFromInput(in)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.Prods.Create(&prod); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return s.Prods.Get(prod.ID)
}

func (s *CatalogService) UpdateProduct(p domain.Principal, id int64, in ProductInput) (domain.Product, error) {
	if !p.CanManageCatalog() {
		return domain.Product{}, domain.ErrPermissionDenied
	}
	if _, err := s.Prods.Get(id); err != nil {
		return domain.Product{}, err
	}
	prod, err := s.productFromInput(in)
	if err != nil {
		return domain.Product{}, err
	}
	prod.ID = id
	if err := s.Prods.Update(&prod); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return s.Prods.Get(id)
}

// DeleteProduct fails with ErrReferentialIntegrity while order items reference the product.
func (s *CatalogService) DeleteProduct(p domain.Principal, id int64) error {
	if !p.CanManageCatalog() {
		return domain.ErrPermissionDenied
	}
	return repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		return s.Prods.With(tx).Delete(id)
	})
}

// productFromInput validates the form and resolves its references.
func (s *CatalogService) productFromInput(in ProductInput) (domain.Product, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	verr := validate.Struct(in)

	prod := domain.Product{
		SKU:         sql.NullString{String: in.SKU, Valid: in.SKU != ""},
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
	}

	if strings.TrimSpace(in.Price) != "" {
		price, ok := validate.Decimal(in.Price)
		switch {
		case !ok:
			verr.Add("price", "Enter a number.")
		case !price.IsPositive():
			verr.Add("price", "Ensure this value is greater than 0.")
		case !price.Equal(price.Round(2)):
			verr.Add("price", "Ensure that there are no more than 2 decimal places.")
		case price.GreaterThanOrEqual(maxPrice):
			verr.Add("price", "Ensure that there are no more than 10 digits in total.")
		default:
			prod.Price = price.Round(2)
		}
	}

	if stock, ok := validate.Stock(in.Stock); ok {
		prod.Stock = stock
	} else {
		verr.Add("stock", "Ensure this value is greater than or equal to 0.")
	}

	if err := s.resolveRef(in.CategoryID, "category", func(id int64) error {
		_, err := s.Cats.Get(id)
		return err
	}, &prod.CategoryID, verr); err != nil {
		return domain.Product{}, err
	}
	if err := s.resolveRef(in.SupplierID, "supplier", func(id int64) error {
		_, err := s.Sups.Get(id)
		return err
	}, &prod.SupplierID, verr); err != nil {
		return domain.Product{}, err
	}

	if err := verr.OrNil(); err != nil {
		return domain.Product{}, err
	}
	return prod, nil
}

// resolveRef fills dst from an optional id field. Unknown ids are a field error.
func (s *CatalogService) resolveRef(raw, field string, lookup func(int64) error, dst *sql.NullInt64, verr *domain.ValidationError) error {
	if strings.TrimSpace(raw) == "" {
		*dst = sql.NullInt64{}
		return nil
	}
	id, ok := validate.ID(raw)
	if !ok {
		verr.Add(field, "Select a valid choice.")
		return nil
	}
	if err := lookup(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			verr.Add(field, "Select a valid choice.")
			return nil
		}
		return err
	}
	*dst = sql.NullInt64{Int64: id, Valid: true}
	return nil
}

// ---------- Categories ----------

func (s *CatalogService) ListCategories() ([]domain.Category, error) {
	return s.Cats.List()
}

func (s *CatalogService) GetCategory(id int64) (domain.Category, error) {
	return s.Cats.Get(id)
}

func (s *CatalogService) CreateCategory(p domain.Principal, in CategoryInput) (domain.Category, error) {
	return s.saveCategory(p, 0, in)
}

func (s *CatalogService) UpdateCategory(p domain.Principal, id int64, in CategoryInput) (domain.Category, error) {
	if _, err := s.Cats.Get(id); err != nil {
		return domain.Category{}, err
	}
	return s.saveCategory(p, id, in)
}

func (s *CatalogService) saveCategory(p domain.Principal, id int64, in CategoryInput) (domain.Category, error) {
	if !p.CanManageCatalog() {
		return domain.Category{}, domain.ErrPermissionDenied
	}
	in.Name = strings.TrimSpace(in.Name)
	verr := validate.Struct(in)
	if in.Name != "" {
		taken, err := s.Cats.NameTaken(in.Name, id)
		if err != nil {
			return domain.Category{}, err
		}
		if taken {
			verr.Add("name", "Category with this Name already exists.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{ID: id, Name: in.Name, Description: strings.TrimSpace(in.Description)}
	if id == 0 {
		err := s.Cats.Create(&c)
		return c, err
	}
	return c, s.Cats.Update(&c)
}

// DeleteCategory leaves former members uncategorized.
func (s *CatalogService) DeleteCategory(p domain.Principal, id int64) error {
	if !p.CanManageCatalog() {
		return domain.ErrPermissionDenied
	}
	return repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		return s.Cats.With(tx).Delete(id)
	})
}

// ---------- Suppliers ----------

func (s *CatalogService) ListSuppliers() ([]domain.Supplier, error) {
	return s.Sups.List()
}

func (s *CatalogService) GetSupplier(id int64) (domain.Supplier, error) {
	return s.Sups.Get(id)
}

func (s *CatalogService) CreateSupplier(p domain.Principal, in SupplierInput) (domain.Supplier, error) {
	return s.saveSupplier(p, 0, in)
}

func (s *CatalogService) UpdateSupplier(p domain.Principal, id int64, in SupplierInput) (domain.Supplier, error) {
	if _, err := s.Sups.Get(id); err != nil {
		return domain.Supplier{}, err
	}
	return s.saveSupplier(p, id, in)
}

func (s *CatalogService) saveSupplier(p domain.Principal, id int64, in SupplierInput) (domain.Supplier, error) {
	if !p.CanManageCatalog() {
		return domain.Supplier{}, domain.ErrPermissionDenied
	}
	in.Name = strings.TrimSpace(in.Name)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validate.Struct(in).OrNil(); err != nil {
		return domain.Supplier{}, err
	}
	sup := domain.Supplier{ID: id, Name: in.Name, ContactEmail: in.ContactEmail, Phone: in.Phone}
	if id == 0 {
		err := s.Sups.Create(&sup)
		return sup, err
	}
	return sup, s.Sups.Update(&sup)
}

// DeleteSupplier leaves former products without a supplier.
func (s *CatalogService) DeleteSupplier(p domain.Principal, id int64) error {
	if !p.CanManageCatalog() {
		return domain.ErrPermissionDenied
	}
	return repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		return s.Sups.With(tx).Delete(id)
	})
}
