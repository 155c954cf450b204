package httpapi

import (
	"net/http"

	"github.com/MiriamHerrera/cosmetics-api/internal/auth"
)

type authResponse struct {
	User  auth.User `json:"user"`
	Token string    `json:"token"`
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	u, token, err := a.Auth.Register(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, authResponse{User: u, Token: token})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	u, token, err := a.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	u, err := a.Auth.GetUser(r.Context(), claims.UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}
