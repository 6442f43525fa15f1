package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stock(t *testing.T, c *client, productID string) int {
	t.Helper()
	resp := c.get("/api/products/"+productID+"/stock", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status string `json:"status"`
		Qty    int    `json:"qty"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Qty
}

func placeOrder(t *testing.T, c *client, form url.Values) string {
	t.Helper()
	resp := c.post("/orders", form, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.Regexp(t, `^/orders/\d+$`, loc)
	return loc
}

func TestCustomerOrderLifecycle(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("alice")

	order := placeOrder(t, c, url.Values{
		"product_id": {"3", "1", ""},
		"quantity":   {"2", "1", ""},
	})
	html := body(t, c.get(order, false))
	assert.Contains(t, html, "Salted Peanuts")
	assert.Contains(t, html, "42.50")
	assert.Contains(t, html, "Pending")
	assert.Equal(t, 23, stock(t, c, "3"))

	resp := c.post(order+"/cancel", nil, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, 25, stock(t, c, "3"))
	assert.Contains(t, body(t, c.get(order, false)), "Canceled")

	// Terminal orders cannot be edited further.
	resp = c.post(order+"/items", url.Values{"product_id": {"1"}, "quantity": {"1"}}, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOrderFormRejectsBadInput(t *testing.T) {
	c := newClient(t, newApp(t))
	c.login("alice")

	resp := c.post("/orders", url.Values{"product_id": {""}, "quantity": {""}}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Add at least one item.")

	resp = c.post("/orders", url.Values{"product_id": {"2"}, "quantity": {"50"}}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Not enough stock")
	assert.Equal(t, 3, stock(t, c, "2"))
}

func TestOrderAccessIsScoped(t *testing.T) {
	app := newApp(t)
	alice := newClient(t, app)
	alice.login("alice")
	order := placeOrder(t, alice, url.Values{"product_id": {"1"}, "quantity": {"1"}})

	bob := newClient(t, app)
	bob.login("bob")
	resp := bob.get(order, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))

	resp = bob.get(order, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = bob.post(order+"/cancel", nil, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.NotContains(t, body(t, bob.get("/orders", false)), "Alice Gomez")

	// Customers may cancel but not complete.
	resp = alice.post(order+"/edit", url.Values{"status": {"C"}}, true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, alice.get("/orders/999", false).StatusCode)
}

func TestStaffCompletesOrders(t *testing.T) {
	app := newApp(t)
	alice := newClient(t, app)
	alice.login("alice")
	first := placeOrder(t, alice, url.Values{"product_id": {"3"}, "quantity": {"1"}})
	second := placeOrder(t, alice, url.Values{"product_id": {"3"}, "quantity": {"1"}})

	staff := newClient(t, app)
	staff.login("admin")

	resp := staff.post("/orders/complete", url.Values{"order": {first[len("/orders/"):], second[len("/orders/"):]}}, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, body(t, staff.get("/orders", false)), "2 order(s) marked as completed.")

	resp = staff.post(first+"/edit", url.Values{"status": {"X"}}, true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = alice.post("/orders/complete", url.Values{"order": {"1"}}, false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
}

func TestStaffEditsOrderItems(t *testing.T) {
	app := newApp(t)
	alice := newClient(t, app)
	alice.login("alice")
	order := placeOrder(t, alice, url.Values{"product_id": {"1"}, "quantity": {"2"}})

	staff := newClient(t, app)
	staff.login("admin")
	resp := staff.post(order+"/items", url.Values{"product_id": {"3"}, "quantity": {"1"}}, false)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, body(t, staff.get(order, false)), "40.00")

	resp = staff.post(order+"/edit", url.Values{"customer": {"2"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Status     string `json:"status"`
		Total      string `json:"total"`
		CustomerID int64  `json:"customer_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Pending", out.Status)
	assert.Equal(t, "40.00", out.Total)
	assert.Equal(t, int64(2), out.CustomerID)
}

type orderJSON struct {
	Status     string `json:"status"`
	Total      string `json:"total"`
	CustomerID int64  `json:"customer_id"`
}

func TestPatchOrderWithJSONBody(t *testing.T) {
	app := newApp(t)
	alice := newClient(t, app)
	alice.login("alice")
	order := placeOrder(t, alice, url.Values{"product_id": {"1"}, "quantity": {"1"}})

	staff := newClient(t, app)
	staff.login("admin")

	resp := staff.sendJSON(http.MethodPatch, order, `{"customer":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out orderJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(2), out.CustomerID)
	assert.Equal(t, "Pending", out.Status)

	resp = staff.sendJSON(http.MethodPatch, order, `{"status":"C"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Completed", out.Status)
	assert.Equal(t, "12.50", out.Total)
	assert.Contains(t, body(t, staff.get(order, false)), "Completed")

	resp = staff.sendJSON(http.MethodPatch, order, `{"status":"X"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = staff.sendJSON(http.MethodPatch, order, `{"status":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
