package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MiriamHerrera/cosmetics-api/internal/auth"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
	"github.com/MiriamHerrera/cosmetics-api/internal/survey"
)

// ---------------------------------------------------------------------------
// Products and categories
// ---------------------------------------------------------------------------

func (a *App) handleAdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	p, err := a.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (a *App) handleAdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductUpdate
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	p, err := a.Catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (a *App) handleAdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *App) handleAdminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Catalog.CreateCategory(r.Context(), in.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

func (a *App) handleAdminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (a *App) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Auth.ListUsers(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, users)
}

func (a *App) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.Auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (a *App) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in auth.UpdateUserInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	u, err := a.Auth.UpdateUser(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func (a *App) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	res, err := a.Orders.List(r.Context(),
		strings.TrimSpace(r.URL.Query().Get("status")),
		r.URL.Query().Get("cursor"),
		intQuery(r, "limit", 20, 1, 100),
	)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (a *App) handleAdminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (a *App) handleAdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	o, err := a.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

// ---------------------------------------------------------------------------
// Delivery locations and time slots
// ---------------------------------------------------------------------------

func (a *App) handleAdminListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := a.Orders.ListLocations(r.Context(), false)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, locs)
}

func (a *App) handleAdminCreateLocation(w http.ResponseWriter, r *http.Request) {
	var in order.LocationInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	loc, err := a.Orders.CreateLocation(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, loc)
}

func (a *App) handleAdminUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var in order.LocationInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	loc, err := a.Orders.UpdateLocation(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, loc)
}

func (a *App) handleAdminDeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := a.Orders.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *App) handleAdminListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := a.Orders.ListSlots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, slots)
}

func (a *App) handleAdminCreateSlot(w http.ResponseWriter, r *http.Request) {
	var in order.SlotInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	slot, err := a.Orders.CreateSlot(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, slot)
}

func (a *App) handleAdminDeleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := a.Orders.DeleteSlot(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---------------------------------------------------------------------------
// Surveys
// ---------------------------------------------------------------------------

func (a *App) handleAdminCreateSurvey(w http.ResponseWriter, r *http.Request) {
	var in survey.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	s, err := a.Surveys.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, s)
}

func (a *App) handleAdminSetSurveyActive(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	s, err := a.Surveys.SetActive(r.Context(), chi.URLParam(r, "id"), in.Active)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, s)
}

func (a *App) handleAdminDeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if err := a.Surveys.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func (a *App) handleAdminSalesReport(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Reports.Sales(r.Context(),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, summary)
}

func (a *App) handleAdminTopProducts(w http.ResponseWriter, r *http.Request) {
	top, err := a.Reports.TopProducts(r.Context(), intQuery(r, "limit", 10, 1, 100))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, top)
}

func (a *App) handleAdminLowStock(w http.ResponseWriter, r *http.Request) {
	low, err := a.Reports.LowStock(r.Context(), intQuery(r, "threshold", 5, 0, 1000))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, low)
}
