package httpapi

import (
	"net/http"

	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
)

type cartRequest struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// identity resolves the cart owner: the bearer token wins when present,
// otherwise the session id carried in the request body.
func identity(r *http.Request, sessionID string) cart.Identity {
	if claims, ok := claimsFrom(r.Context()); ok {
		return cart.Identity{UserID: claims.UserID}
	}
	return cart.Identity{SessionID: sessionID}
}

func (a *App) handleCartGet(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Carts.Get(r.Context(), identity(r, req.SessionID))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (a *App) handleCartAddItem(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Carts.AddItem(r.Context(), identity(r, req.SessionID), req.ProductID, req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (a *App) handleCartUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Carts.UpdateQuantity(r.Context(), identity(r, req.SessionID), req.ProductID, req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (a *App) handleCartRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Carts.RemoveItem(r.Context(), identity(r, req.SessionID), req.ProductID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (a *App) handleCartClear(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Carts.Clear(r.Context(), identity(r, req.SessionID))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

// handleCartMigrate moves the caller's guest cart to their account after
// login. The user id comes from the token, never from the body.
func (a *App) handleCartMigrate(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := a.Carts.MigrateGuestToUser(r.Context(), req.SessionID, claims.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (a *App) handleCartCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := a.Carts.CleanupExpired(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}
