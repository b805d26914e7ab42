package server

import (
	"net/http"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/auth"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/token", s.handleToken)
	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.Handle("/api/policies", auth.RequireRole(auth.RoleAdmin)(http.HandlerFunc(s.handlePolicies)))

	s.mux.HandleFunc("/v1/blobs", s.handleBlobs)
	s.mux.HandleFunc("/v1/blobs/", s.handleBlobByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
