package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router assembles the REST surface. Every route runs behind the security
// headers, request log, rate limit and optional-auth middleware; the admin
// subtree additionally demands an admin token.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(withServerDefaults)
	r.Use(requestLogger)
	r.Use(newRateLimiter(a.Cfg.RateRPS, a.Cfg.RateBurst).middleware)
	r.Use(a.withOptionalAuth)

	r.Get("/healthz", a.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.With(requireUser).Get("/auth/me", a.handleMe)

		r.Get("/products", a.handleListProducts)
		r.Get("/products/{id}", a.handleGetProduct)
		r.Get("/products/{id}/availability", a.handleAvailability)
		r.Get("/categories", a.handleListCategories)

		r.Route("/unified-cart", func(r chi.Router) {
			r.Post("/get", a.handleCartGet)
			r.Post("/add-item", a.handleCartAddItem)
			r.Post("/update-quantity", a.handleCartUpdateQuantity)
			r.Delete("/remove-item", a.handleCartRemoveItem)
			r.Delete("/clear", a.handleCartClear)
			r.With(requireUser).Post("/migrate-guest-to-user", a.handleCartMigrate)
			r.Post("/cleanup-expired", a.handleCartCleanup)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(requireUser).Post("/", a.handleCreateOrder)
			r.Post("/guest", a.handleCreateGuestOrder)
			r.Get("/delivery-locations", a.handleDeliveryLocations)
			r.Get("/delivery-times", a.handleDeliveryTimes)
			r.With(requireUser).Get("/mine", a.handleMyOrders)
		})

		r.Route("/surveys", func(r chi.Router) {
			r.Get("/", a.handleListSurveys)
			r.Get("/{id}", a.handleGetSurvey)
			r.Post("/{id}/vote", a.handleVote)
			r.Get("/{id}/results", a.handleSurveyResults)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/products", a.handleAdminCreateProduct)
			r.Put("/products/{id}", a.handleAdminUpdateProduct)
			r.Delete("/products/{id}", a.handleAdminDeleteProduct)

			r.Post("/categories", a.handleAdminCreateCategory)
			r.Delete("/categories/{id}", a.handleAdminDeleteCategory)

			r.Get("/users", a.handleAdminListUsers)
			r.Get("/users/{id}", a.handleAdminGetUser)
			r.Put("/users/{id}", a.handleAdminUpdateUser)

			r.Get("/orders", a.handleAdminListOrders)
			r.Get("/orders/{id}", a.handleAdminGetOrder)
			r.Put("/orders/{id}/status", a.handleAdminUpdateOrderStatus)

			r.Get("/delivery-locations", a.handleAdminListLocations)
			r.Post("/delivery-locations", a.handleAdminCreateLocation)
			r.Put("/delivery-locations/{id}", a.handleAdminUpdateLocation)
			r.Delete("/delivery-locations/{id}", a.handleAdminDeleteLocation)
			r.Get("/delivery-locations/{id}/time-slots", a.handleAdminListSlots)
			r.Post("/delivery-time-slots", a.handleAdminCreateSlot)
			r.Delete("/delivery-time-slots/{id}", a.handleAdminDeleteSlot)

			r.Post("/surveys", a.handleAdminCreateSurvey)
			r.Put("/surveys/{id}/active", a.handleAdminSetSurveyActive)
			r.Delete("/surveys/{id}", a.handleAdminDeleteSurvey)

			r.Get("/reports/sales", a.handleAdminSalesReport)
			r.Get("/reports/top-products", a.handleAdminTopProducts)
			r.Get("/reports/low-stock", a.handleAdminLowStock)
		})
	})

	return r
}
