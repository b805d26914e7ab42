// Package integrity implements the HMAC signing protocol used by
// cooperating services to detect request and response tampering.
//
// Signatures are namespaced strings of the form "<ns>:sha256:<hex>"
// computed over canonical representations of the call: for requests
// METHOD:PATH:TIMESTAMP[:bodyHMAC], for responses STATUS:bodyHMAC. The
// body term is itself an HMAC of the raw bytes, so the outer signature
// never sees unbounded input.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingKeyphrase is returned at construction when no shared
	// keyphrase is configured. There is no unsigned mode.
	ErrMissingKeyphrase = errors.New("integrity: keyphrase required")

	// ErrMissingHeader marks an absent signature header. A missing
	// header is a verification failure, not "unsigned, skip".
	ErrMissingHeader = errors.New("integrity: missing signature header")

	ErrVerificationFailed = errors.New("integrity: verification failed")
)

// DefaultNamespace identifies the platform in signature strings and
// header names.
const DefaultNamespace = "strixun"

const sigAlgorithm = "sha256"

// Signer computes and checks integrity signatures under a shared
// keyphrase. It is immutable and safe for concurrent use.
type Signer struct {
	ns        string
	keyphrase []byte
}

func New(namespace, keyphrase string) (*Signer, error) {
	if keyphrase == "" {
		return nil, ErrMissingKeyphrase
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Signer{ns: namespace, keyphrase: []byte(keyphrase)}, nil
}

func (s *Signer) Namespace() string { return s.ns }

// RequestHeader is the header carrying the request signature, e.g.
// X-Strixun-Request-Integrity.
func (s *Signer) RequestHeader() string   { return "X-" + s.headerNs() + "-Request-Integrity" }
func (s *Signer) TimestampHeader() string { return "X-" + s.headerNs() + "-Request-Timestamp" }
func (s *Signer) ResponseHeader() string  { return "X-" + s.headerNs() + "-Response-Integrity" }

func (s *Signer) headerNs() string {
	return strings.ToUpper(s.ns[:1]) + s.ns[1:]
}

// Timestamp returns the canonical timestamp value for outbound
// requests: unix milliseconds as a decimal string.
func (s *Signer) Timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// SignRequest produces the signature for an outbound request. The body
// term is omitted when the body is empty.
func (s *Signer) SignRequest(method, path string, body []byte, timestamp string) string {
	parts := []string{strings.ToUpper(method), path, timestamp}
	if len(body) > 0 {
		parts = append(parts, s.bodyHMAC(body))
	}
	return s.seal(strings.Join(parts, ":"))
}

// SignResponse produces the signature for a response. The body term is
// always present; an empty body hashes to a well-defined value.
func (s *Signer) SignResponse(status int, body []byte) string {
	return s.seal(strconv.Itoa(status) + ":" + s.bodyHMAC(body))
}

// VerifyRequest checks an inbound request signature against its
// canonical reconstruction.
func (s *Signer) VerifyRequest(method, path string, body []byte, timestamp, signature string) error {
	return s.verify(s.SignRequest(method, path, body, timestamp), signature)
}

// VerifyResponse checks a response signature. The format is validated
// before any HMAC work; comparison is constant time.
func (s *Signer) VerifyResponse(status int, body []byte, signature string) error {
	return s.verify(s.SignResponse(status, body), signature)
}

func (s *Signer) verify(expected, received string) error {
	if received == "" {
		return ErrMissingHeader
	}
	got, err := s.parse(received)
	if err != nil {
		return err
	}
	want, err := s.parse(expected)
	if err != nil {
		return err
	}
	if !hmac.Equal(got, want) {
		return ErrVerificationFailed
	}
	return nil
}

// parse rejects anything that is not exactly "<ns>:sha256:<64 lowercase
// hex chars>" and returns the decoded digest.
func (s *Signer) parse(signature string) ([]byte, error) {
	parts := strings.Split(signature, ":")
	if len(parts) != 3 || parts[0] != s.ns || parts[1] != sigAlgorithm {
		return nil, ErrVerificationFailed
	}
	if len(parts[2]) != hex.EncodedLen(sha256.Size) {
		return nil, ErrVerificationFailed
	}
	if strings.ToLower(parts[2]) != parts[2] {
		return nil, ErrVerificationFailed
	}
	digest, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrVerificationFailed
	}
	return digest, nil
}

func (s *Signer) seal(canonical string) string {
	return s.ns + ":" + sigAlgorithm + ":" + s.hmacHex([]byte(canonical))
}

func (s *Signer) bodyHMAC(body []byte) string {
	return s.hmacHex(body)
}

func (s *Signer) hmacHex(data []byte) string {
	mac := hmac.New(sha256.New, s.keyphrase)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
