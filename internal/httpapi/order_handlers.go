package httpapi

import (
	"net/http"
	"strings"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
)

// handleCreateOrder finalizes the authenticated user's cart.
func (a *App) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var in order.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	receipt, err := a.Orders.Create(r.Context(), cart.Identity{UserID: claims.UserID}, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, receipt)
}

// handleCreateGuestOrder finalizes a guest cart keyed by session id.
func (a *App) handleCreateGuestOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"session_id"`
		order.CreateInput
	}
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	receipt, err := a.Orders.Create(r.Context(), cart.Identity{SessionID: in.SessionID}, in.CreateInput)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, receipt)
}

func (a *App) handleDeliveryLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := a.Orders.ListLocations(r.Context(), true)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, locs)
}

// handleDeliveryTimes lists the slots open on one date at one location. The
// scheduling horizon depends on whether the caller is logged in.
func (a *App) handleDeliveryTimes(w http.ResponseWriter, r *http.Request) {
	locationID := strings.TrimSpace(r.URL.Query().Get("location_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if locationID == "" || date == "" {
		fail(w, r, apperr.Invalid("location_id and date are required"))
		return
	}
	_, registered := claimsFrom(r.Context())
	slots, err := a.Orders.SlotsForDate(r.Context(), locationID, date, registered)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (a *App) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	orders, err := a.Orders.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, orders)
}
