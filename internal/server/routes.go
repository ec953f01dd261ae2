package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/habitcity/internal/auth"
	"github.com/lazypower/habitcity/internal/engine"
	"github.com/lazypower/habitcity/internal/store"
)

// userID prefers the verified identity over what the request claims.
func (s *Server) userID(r *http.Request, claimed string) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.UserID
	}
	return claimed
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string            `json:"user_id"`
		State  *engine.UserState `json:"state"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.State == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state required"})
		return
	}

	d, err := s.engine.Decide(r.Context(), req.UserID, *req.State)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCompleteHabit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string            `json:"user_id"`
		HabitType string            `json:"habit_type"`
		State     *engine.UserState `json:"state"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	state := engine.DefaultState
	if req.State != nil {
		state = *req.State
	}

	d, up, err := s.engine.DecideAndComplete(r.Context(), s.userID(r, req.UserID), req.HabitType, state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action":          d.Action,
		"action_id":       d.ActionID,
		"explanation":     d.Explanation,
		"city_effect":     d.CityEffect,
		"building_update": up,
	})
}

type userJSON struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name"`
	Timezone    string  `json:"timezone"`
	CreatedAt   string  `json:"created_at"`
}

func toUserJSON(u store.User) userJSON {
	out := userJSON{
		ID:        u.ID,
		Email:     u.Email,
		Timezone:  u.Timezone,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.DisplayName != "" {
		out.DisplayName = &u.DisplayName
	}
	return out
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Timezone    string `json:"timezone"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	u := store.User{
		ID:          req.UserID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
	}
	if id, ok := auth.FromContext(r.Context()); ok {
		u.ID, u.Email, u.DisplayName = id.UserID, id.Email, id.DisplayName
	}

	reg, err := s.engine.Register(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if reg.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"user":        toUserJSON(reg.User),
		"city_state":  reg.City,
		"is_new_user": reg.IsNew,
	})
}

func (s *Server) handleCityState(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r, r.URL.Query().Get("user_id"))

	city, err := s.engine.CityState(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

// handleUpdateState only acknowledges. Behavioral state is tracked by the
// client and sent with each decision.
func (s *Server) handleUpdateState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string  `json:"user_id"`
		HabitCompleted bool    `json:"habit_completed"`
		HabitType      *string `json:"habit_type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	userID := s.userID(r, req.UserID)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}

	log.Printf("state update for %s: habit_completed=%v", userID, req.HabitCompleted)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "State update recorded",
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if id, ok := auth.FromContext(r.Context()); ok && id.UserID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot clear another user's history"})
		return
	}

	if err := s.engine.ResetHistory(userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
