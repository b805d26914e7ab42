package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/auth"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/envelope"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/storage"
)

// handleBlobs accepts raw bytes, seals them into a binary envelope
// under the caller's credential and persists only the envelope. The
// stored blob is unreadable without that same credential.
func (s *Server) handleBlobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cred, ok := auth.CredentialFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no credential")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "blob too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	sealed, err := envelope.EncryptBinary(data, cred)
	if err != nil {
		s.log.Sugar().Errorw("blob encryption failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	id := uuid.NewString()
	if err := s.store.Put(r.Context(), id, sealed); err != nil {
		s.log.Sugar().Errorw("blob store put failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleBlobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/blobs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	cred, ok := auth.CredentialFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no credential")
		return
	}

	switch r.Method {
	case http.MethodGet:
		sealed, err := s.store.Get(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blob not found")
			return
		}
		if err != nil {
			s.log.Sugar().Errorw("blob store get failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		data, err := envelope.DecryptBinary(sealed, cred)
		if errors.Is(err, envelope.ErrTokenMismatch) {
			// The blob exists but belongs to a different credential.
			writeError(w, http.StatusForbidden, "credential does not match blob")
			return
		}
		if err != nil {
			s.log.Sugar().Errorw("blob decryption failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

	case http.MethodDelete:
		// Only the credential that sealed a blob may remove it.
		sealed, err := s.store.Get(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			s.log.Sugar().Errorw("blob store get failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if _, err := envelope.DecryptBinary(sealed, cred); err != nil {
			writeError(w, http.StatusForbidden, "credential does not match blob")
			return
		}
		if err := s.store.Delete(r.Context(), id); err != nil {
			s.log.Sugar().Errorw("blob store delete failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
