// Package httpapi exposes the shop services over REST.
package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/MiriamHerrera/cosmetics-api/internal/auth"
	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/config"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
	"github.com/MiriamHerrera/cosmetics-api/internal/report"
	"github.com/MiriamHerrera/cosmetics-api/internal/survey"
)

// App bundles the services behind the router. DB is nil in memory mode,
// which /healthz reports.
type App struct {
	Cfg config.Config
	DB  *sql.DB

	Auth    *auth.Service
	Catalog *catalog.Service
	Carts   *cart.Service
	Orders  *order.Service
	Surveys *survey.Service
	Reports *report.Service
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	mode := "postgres"
	if a.DB == nil {
		mode = "memory"
	} else if err := a.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Message: "database unreachable"})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok", "storage": mode})
}
