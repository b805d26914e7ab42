// Package server wires the crypto subsystem into an HTTP gateway:
// bearer-credential issuance, request-integrity verification,
// policy-driven response encryption and envelope persistence.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/auth"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/integrity"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/policy"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/storage"
)

const maxRequestBody = 16 << 20 // 16 MiB

type Server struct {
	cfg Config

	mux      *http.ServeMux
	signer   *auth.JWTSigner
	integ    *integrity.Signer
	store    storage.BlobStore
	policies *policy.Policies
	wrap     func(http.Handler) http.Handler
	log      *zap.Logger
}

func New(ctx context.Context, cfg Config, log *zap.Logger) (*Server, error) {
	cfg.setDefaults()
	if cfg.IntegrityKeyphrase == "" {
		return nil, errors.New("server: integrity keyphrase required")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("server: service key required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	integ, err := integrity.New(cfg.Namespace, cfg.IntegrityKeyphrase)
	if err != nil {
		return nil, err
	}

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	var store storage.BlobStore
	switch {
	case cfg.MongoURI != "":
		store, err = storage.NewMongoBlobStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.BlobsCollection)
		if err != nil {
			return nil, err
		}
	case cfg.BlobDir != "":
		store = storage.NewFileBlobStore(cfg.BlobDir)
	default:
		store = storage.NewMemoryBlobStore()
		log.Sugar().Warnw("no mongo uri or blob dir configured, using in-memory blob store")
	}

	policies := policy.NewPolicies(cfg.EncryptionPolicies)
	mw := policy.NewMiddleware(
		policies,
		policy.WithSigner(integ),
		policy.WithServiceKey(cfg.ServiceKey),
		policy.WithLogger(log),
		// The policy middleware runs outside the auth middleware, so the
		// context entry written by AuthRequired is not visible here. Read
		// the credential straight off the request instead.
		policy.WithCredentialFunc(bearerCredential),
	)

	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		signer:   auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		integ:    integ,
		store:    store,
		policies: policies,
		wrap:     mw.Wrap,
		log:      log,
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Sugar().Errorw("panic", "path", r.URL.Path, "recovered", rec)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !s.checkRequestIntegrity(w, r) {
		return
	}

	handler := http.Handler(s.mux)
	if s.isProtected(r.URL.Path) {
		handler = auth.AuthRequired(s.signer)(handler)
	}
	s.wrap(handler).ServeHTTP(w, r)
}

// checkRequestIntegrity verifies inbound integrity headers. The body is
// buffered so the signature covers exactly what the handler will read.
func (s *Server) checkRequestIntegrity(w http.ResponseWriter, r *http.Request) bool {
	sig := r.Header.Get(s.integ.RequestHeader())
	ts := r.Header.Get(s.integ.TimestampHeader())
	if sig == "" && ts == "" && !s.cfg.RequireRequestIntegrity {
		return true
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if err := s.integ.VerifyRequest(r.Method, r.URL.Path, body, ts, sig); err != nil {
		s.log.Sugar().Warnw("request integrity rejected",
			"path", r.URL.Path, "error", err)
		writeError(w, http.StatusUnauthorized, "request integrity verification failed")
		return false
	}
	return true
}

func bearerCredential(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (s *Server) isProtected(path string) bool {
	switch path {
	case "/health", "/api/health", "/api/token":
		return false
	}
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/v1/")
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+s.integ.RequestHeader()+", "+s.integ.TimestampHeader())
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
}
