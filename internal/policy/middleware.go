package policy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/auth"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/envelope"
	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/integrity"
)

// HeaderEncrypted and HeaderStrategy describe an encrypted response to
// the receiving side.
const (
	HeaderEncrypted = "X-Encrypted"
	HeaderStrategy  = "X-Encryption-Strategy"
)

// Encryptor wraps a JSON-serializable value in an envelope. Swappable
// so the fail-closed path can be exercised in tests.
type Encryptor func(v any, credential string) (*envelope.Envelope, error)

// CredentialFunc resolves the bearer credential for a request; the
// default reads the auth middleware's context entry.
type CredentialFunc func(r *http.Request) string

// Middleware enforces encryption policies on responses flowing through
// it and signs final bodies when a signer is configured.
type Middleware struct {
	policies   *Policies
	signer     *integrity.Signer
	serviceKey string
	log        *zap.Logger
	encrypt    Encryptor
	credential CredentialFunc
}

type Option func(*Middleware)

// WithSigner makes the middleware attach a response integrity header to
// every response it writes.
func WithSigner(s *integrity.Signer) Option {
	return func(m *Middleware) { m.signer = s }
}

// WithServiceKey supplies the key material for service-key routes.
func WithServiceKey(key string) Option {
	return func(m *Middleware) { m.serviceKey = key }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Middleware) { m.log = l }
}

func WithEncryptor(e Encryptor) Option {
	return func(m *Middleware) { m.encrypt = e }
}

func WithCredentialFunc(f CredentialFunc) Option {
	return func(m *Middleware) { m.credential = f }
}

func NewMiddleware(policies *Policies, opts ...Option) *Middleware {
	m := &Middleware{
		policies: policies,
		log:      zap.NewNop(),
		encrypt:  envelope.EncryptJSON,
		credential: func(r *http.Request) string {
			cred, _ := auth.CredentialFromContext(r.Context())
			return cred
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// responseRecorder buffers the downstream response so the middleware
// can rewrite it before anything reaches the wire.
type responseRecorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}, status: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

// Wrap applies the encryption policy around next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newRecorder()
		next.ServeHTTP(rec, r)

		rule := m.policies.Match(r.URL.Path)
		if !m.shouldEncrypt(rec, rule) {
			m.flush(w, rec.header, rec.status, rec.body.Bytes())
			return
		}

		var credential string
		switch rule.Strategy {
		case StrategyNone:
			// Unreachable: shouldEncrypt already passed these through.
			m.flush(w, rec.header, rec.status, rec.body.Bytes())
			return
		case StrategyJWT:
			credential = m.credential(r)
		case StrategyServiceKey:
			credential = m.serviceKey
		}

		if credential == "" {
			m.fail(w, rec, rule, r.URL.Path, "no credential available")
			return
		}

		env, err := m.encrypt(json.RawMessage(rec.body.Bytes()), credential)
		if err != nil {
			m.fail(w, rec, rule, r.URL.Path, err.Error())
			return
		}
		out, err := json.Marshal(env)
		if err != nil {
			m.fail(w, rec, rule, r.URL.Path, err.Error())
			return
		}

		rec.header.Set(HeaderEncrypted, "true")
		rec.header.Set(HeaderStrategy, rule.Strategy.String())
		m.flush(w, rec.header, rec.status, out)
	})
}

func (m *Middleware) shouldEncrypt(rec *responseRecorder, rule Rule) bool {
	if rule.Strategy == StrategyNone {
		return false
	}
	if rec.status < 200 || rec.status > 299 {
		return false
	}
	ct := rec.header.Get("Content-Type")
	return strings.Contains(ct, "application/json")
}

// fail enforces the mandatory flag: mandatory routes never emit the
// plaintext body on encryption failure, only a generic error.
func (m *Middleware) fail(w http.ResponseWriter, rec *responseRecorder, rule Rule, path, reason string) {
	if rule.Mandatory {
		m.log.Sugar().Errorw("mandatory encryption failed", "path", path, "reason", reason)
		hdr := http.Header{}
		hdr.Set("Content-Type", "application/json; charset=utf-8")
		m.flush(w, hdr, http.StatusInternalServerError, []byte(`{"error":"internal server error"}`))
		return
	}
	m.log.Sugar().Warnw("optional encryption skipped", "path", path, "reason", reason)
	m.flush(w, rec.header, rec.status, rec.body.Bytes())
}

// flush writes the final headers, signature and body.
func (m *Middleware) flush(w http.ResponseWriter, header http.Header, status int, body []byte) {
	for key, values := range header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if m.signer != nil {
		w.Header().Set(m.signer.ResponseHeader(), m.signer.SignResponse(status, body))
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
