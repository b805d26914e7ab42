package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/auth"
)

type tokenRequest struct {
	Subject string      `json:"subject"`
	Roles   []auth.Role `json:"roles"`
}

// handleToken mints a short-lived bearer credential for a peer service.
// The caller authenticates with the shared service key; the issued JWT
// is what keys any envelope produced for that caller.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key := r.Header.Get("X-Service-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.ServiceKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid service key")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject required")
		return
	}
	roles := req.Roles
	if len(roles) == 0 {
		roles = []auth.Role{auth.RoleService}
	}

	token, exp, err := s.signer.IssueToken(req.Subject, roles)
	if err != nil {
		s.log.Sugar().Errorw("token issuance failed", "subject", req.Subject, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, auth.TokenResponse{Token: token, ExpiresAt: exp})
}

// handlePolicies reports the active encryption policy table. Admin
// role required.
func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	type ruleView struct {
		Pattern   string `json:"pattern"`
		Strategy  string `json:"strategy"`
		Mandatory bool   `json:"mandatory"`
	}
	rules := s.policies.Rules()
	out := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleView{
			Pattern:   rule.Pattern,
			Strategy:  rule.Strategy.String(),
			Mandatory: rule.Mandatory,
		})
	}
	writeJSON(w, map[string]any{"policies": out})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, err := auth.MustClaims(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no auth context")
		return
	}
	writeJSON(w, claims)
}
