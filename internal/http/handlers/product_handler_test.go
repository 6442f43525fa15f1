package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productList struct {
	Products []struct {
		ID       int64   `json:"id"`
		SKU      *string `json:"sku"`
		Name     string  `json:"name"`
		Category *string `json:"category"`
		Price    string  `json:"price"`
		Stock    int     `json:"stock"`
	} `json:"products"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

func decodeProducts(t *testing.T, resp *http.Response) productList {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out productList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestProductListFiltersJSON(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("alice")

	all := decodeProducts(t, c.get("/products", true))
	assert.Equal(t, 5, all.Total)
	assert.Equal(t, 1, all.Pages)

	ranged := decodeProducts(t, c.get("/products?pmin=10&pmax=20", true))
	assert.Equal(t, 3, ranged.Total)
	for _, p := range ranged.Products {
		assert.NotEqual(t, "Dish Soap", p.Name)
	}

	// Malformed bounds are ignored rather than rejected.
	loose := decodeProducts(t, c.get("/products?pmin=abc&category=x", true))
	assert.Equal(t, 5, loose.Total)

	// So are negative bounds.
	negative := decodeProducts(t, c.get("/products?pmin=-5&pmax=-1", true))
	assert.Equal(t, 5, negative.Total)

	byCat := decodeProducts(t, c.get("/products?category=2&q=bar", true))
	require.Len(t, byCat.Products, 1)
	assert.Equal(t, "Chocolate Bar", byCat.Products[0].Name)
	assert.Equal(t, "20.00", byCat.Products[0].Price)
}

func TestProductListHTML(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("alice")
	resp := c.get("/products?q=juice", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	assert.Contains(t, html, "Orange Juice 1L")
	assert.Contains(t, html, "12.50")
	assert.NotContains(t, html, "Dish Soap")
	assert.NotContains(t, html, "New product", "customers get no catalog actions")
}

func TestProductDetailNotFound(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("bob")
	assert.Equal(t, http.StatusNotFound, c.get("/products/999", false).StatusCode)
	assert.Equal(t, http.StatusNotFound, c.get("/products/abc", false).StatusCode)
	assert.Equal(t, http.StatusOK, c.get("/products/5", false).StatusCode)
}

func TestCatalogWritesRequireStaff(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("alice")

	resp := c.get("/products/new", false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
	assert.Contains(t, body(t, c.get("/products", false)), "You do not have permission to perform this action.")

	resp = c.post("/products", url.Values{"name": {"Tea"}, "price": {"2.00"}}, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = c.post("/categories", url.Values{"name": {"Hacked"}}, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
}

func TestCreateProductValidation(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("admin")

	resp := c.post("/products", url.Values{"name": {"Tea"}, "price": {"0"}, "stock": {"1"}}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Ensure this value is greater than 0.")

	resp = c.post("/products", url.Values{"name": {"Tea"}, "price": {"-5"}}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Ensure this value is greater than 0.", out.Errors["price"])

	resp = c.post("/products", url.Values{"name": {"Tea"}, "price": {"2.5"}, "stock": {"4"}, "category": {"1"}}, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/products/"))

	detail := body(t, c.get(loc, false))
	assert.Contains(t, detail, "2.50")
	assert.Contains(t, detail, "Beverages")
}

func TestDeleteProductOnOrderIsBlocked(t *testing.T) {
	app := newApp(t)
	customer := newClient(t, app)
	customer.login("alice")
	resp := customer.post("/orders", url.Values{"product_id": {"3"}, "quantity": {"1"}}, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	staff := newClient(t, app)
	staff.login("admin")

	resp = staff.post("/products/3/delete", nil, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products/3", resp.Header.Get("Location"))
	assert.Contains(t, body(t, staff.get("/products/3", false)), "cannot be deleted")

	resp = staff.post("/products/3/delete", nil, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = staff.post("/products/5/delete", nil, false)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
	assert.Equal(t, http.StatusNotFound, staff.get("/products/5", false).StatusCode)
}

func TestCategoryCRUD(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("admin")

	resp := c.post("/categories", url.Values{"name": {"BEVERAGES"}}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Category with this Name already exists.")

	resp = c.post("/categories", url.Values{"name": {"Frozen"}}, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, body(t, c.get("/categories", false)), "Frozen")

	resp = c.post("/categories/1/delete", nil, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	juice := decodeProducts(t, c.get("/products?q=juice", true))
	require.Len(t, juice.Products, 1)
	assert.Nil(t, juice.Products[0].Category)
}

func TestSearch(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("alice")
	html := body(t, c.get("/search?q=peanut", false))
	assert.Contains(t, html, "Salted Peanuts")
	assert.Contains(t, html, "1 result(s)")
}

func TestCatalogRequiresLogin(t *testing.T) {
	c := newClient(t, newApp(t))

	for path, next := range map[string]string{
		"/products?q=juice": "%2Fproducts%3Fq%3Djuice",
		"/products/1":       "%2Fproducts%2F1",
		"/search?q=juice":   "%2Fsearch%3Fq%3Djuice",
	} {
		resp := c.get(path, false)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/accounts/login?next="+next, resp.Header.Get("Location"), path)
	}
	assert.Equal(t, http.StatusUnauthorized, c.get("/products", true).StatusCode)

	resp := c.post("/accounts/login", url.Values{"username": {"bob"}, "password": {"Passw0rd!"}, "next": {"/products/1"}}, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products/1", resp.Header.Get("Location"))
	assert.Contains(t, body(t, c.get("/products/1", false)), "Orange Juice 1L")
}
