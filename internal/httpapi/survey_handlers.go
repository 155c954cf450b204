package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := a.Surveys.List(r.Context(), r.URL.Query().Get("all") != "true")
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, surveys)
}

func (a *App) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	s, err := a.Surveys.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, s)
}

// handleVote records one vote per voter per survey; voting again moves the
// vote. The voter key is the user id when logged in, the session id otherwise.
func (a *App) handleVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		OptionID  string `json:"option_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	voterKey := req.SessionID
	if claims, ok := claimsFrom(r.Context()); ok {
		voterKey = claims.UserID
	}
	if err := a.Surveys.Vote(r.Context(), chi.URLParam(r, "id"), req.OptionID, voterKey); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (a *App) handleSurveyResults(w http.ResponseWriter, r *http.Request) {
	res, err := a.Surveys.TallyResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}
