package api

import (
	"net/http"

	"github.com/dailylens/internal/service"
)

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := s.monitoring.Health(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleFeed handles POST /api/feed - one ranked feed page.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var req service.FeedRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	resp, err := s.feed.GetFeed(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleExplore handles POST /api/explore - catalog browse and search.
func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var req service.ExploreRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	resp, err := s.explore.Explore(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleInteraction handles POST /api/interactions - one reaction write.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req service.InteractionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	resp, err := s.interactions.Record(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListUsers handles GET /api/users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// handleOnboard handles POST /api/users/onboard - new user signup.
func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req service.OnboardRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	resp, err := s.users.Onboard(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// handleUpdateFocus handles POST /api/users/focus.
func (s *Server) handleUpdateFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		FocusMode string `json:"focus_mode"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	resp, err := s.users.UpdateFocus(r.Context(), req.UserID, req.FocusMode)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleReferralSignup handles POST /api/referrals/simulate-signup.
func (s *Server) handleReferralSignup(w http.ResponseWriter, r *http.Request) {
	var req service.ReferralSignupRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	resp, err := s.users.SimulateReferralSignup(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleRefresh handles POST /api/refresh - replace the article pool.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	resp, err := s.catalog.Refresh(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleDashboard handles GET /api/monitoring/dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.monitoring.Dashboard(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
