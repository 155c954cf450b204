package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
)

func (a *App) handleListProducts(w http.ResponseWriter, r *http.Request) {
	f := catalog.ListFilter{
		CategoryID: strings.TrimSpace(r.URL.Query().Get("category_id")),
		ActiveOnly: r.URL.Query().Get("all") != "true",
		Cursor:     r.URL.Query().Get("cursor"),
		Limit:      intQuery(r, "limit", 20, 1, 100),
	}
	res, err := a.Catalog.ListProducts(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (a *App) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (a *App) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.Catalog.ListCategories(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, cats)
}

// handleAvailability reports the quantity of a product not held by unexpired
// reservations. The storefront polls this to keep stock badges fresh.
func (a *App) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.Catalog.GetProduct(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	n, err := a.Carts.Available(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"product_id": id, "available": n})
}
