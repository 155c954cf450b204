package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
	"github.com/MiriamHerrera/cosmetics-api/internal/auth"
	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/obs"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
	"github.com/MiriamHerrera/cosmetics-api/internal/survey"
)

// envelope is the wire shape of every response: {success, data} on the happy
// path, {success, message} on errors.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`

	// conflict details, only set on 409s
	Available *int     `json:"available,omitempty"`
	Problems  []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

// fail translates a service error into the status code and envelope the
// client sees. Unrecognized errors are logged and surfaced as a generic 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var oos *cart.OutOfStockError
	if errors.As(err, &oos) {
		writeJSON(w, http.StatusConflict, envelope{
			Message:   oos.Error(),
			Available: &oos.Available,
		})
		return
	}
	var chk *order.CheckoutError
	if errors.As(err, &chk) {
		writeJSON(w, http.StatusConflict, envelope{
			Message:  chk.Error(),
			Problems: chk.Problems,
		})
		return
	}

	code := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case apperr.IsInvalid(err),
		errors.Is(err, cart.ErrInvalidIdentity),
		errors.Is(err, order.ErrCartEmpty):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid):
		code, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, cart.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrLocationNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, survey.ErrNotFound),
		errors.Is(err, survey.ErrOptionNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, cart.ErrProductInactive),
		errors.Is(err, order.ErrSlotUnavailable),
		errors.Is(err, order.ErrBadTransition),
		errors.Is(err, survey.ErrInactive):
		code, msg = http.StatusConflict, err.Error()
	default:
		obs.Logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, envelope{Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return apperr.Invalid("cannot read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperr.Invalid("empty request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Invalid("invalid JSON payload")
	}
	return nil
}

func intQuery(r *http.Request, key string, def, min, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
