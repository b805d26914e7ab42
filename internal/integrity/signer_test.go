package integrity

import (
	"errors"
	"strings"
	"testing"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := New("strixun", "shared-keyphrase-for-tests")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestNewRequiresKeyphrase(t *testing.T) {
	if _, err := New("strixun", ""); !errors.Is(err, ErrMissingKeyphrase) {
		t.Fatalf("got %v, want ErrMissingKeyphrase", err)
	}
}

func TestHeaderNames(t *testing.T) {
	s := newTestSigner(t)
	if got := s.RequestHeader(); got != "X-Strixun-Request-Integrity" {
		t.Fatalf("request header: %s", got)
	}
	if got := s.TimestampHeader(); got != "X-Strixun-Request-Timestamp" {
		t.Fatalf("timestamp header: %s", got)
	}
	if got := s.ResponseHeader(); got != "X-Strixun-Response-Integrity" {
		t.Fatalf("response header: %s", got)
	}
}

func TestRequestSignVerify(t *testing.T) {
	s := newTestSigner(t)
	body := []byte(`{"email":"viewer@example.com"}`)
	ts := s.Timestamp()

	sig := s.SignRequest("post", "/auth/request-otp", body, ts)
	if !strings.HasPrefix(sig, "strixun:sha256:") {
		t.Fatalf("unexpected signature format: %s", sig)
	}
	if err := s.VerifyRequest("POST", "/auth/request-otp", body, ts, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// Method case must not matter; the canonical form is uppercase.
	if err := s.VerifyRequest("PoSt", "/auth/request-otp", body, ts, sig); err != nil {
		t.Fatalf("verify mixed case: %v", err)
	}
}

func TestRequestBodylessOmitsBodyTerm(t *testing.T) {
	s := newTestSigner(t)
	ts := "1756500000000"
	withBody := s.SignRequest("GET", "/auth/me", []byte("x"), ts)
	without := s.SignRequest("GET", "/auth/me", nil, ts)
	if withBody == without {
		t.Fatal("body term had no effect on signature")
	}
	if err := s.VerifyRequest("GET", "/auth/me", nil, ts, without); err != nil {
		t.Fatalf("verify bodyless: %v", err)
	}
}

func TestResponseTamperDetection(t *testing.T) {
	s := newTestSigner(t)
	body := []byte(`{"token":"abc","userId":"u-9"}`)
	sig := s.SignResponse(200, body)

	if err := s.VerifyResponse(200, body, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Flip each byte of the body in turn.
	for i := range body {
		mut := append([]byte(nil), body...)
		mut[i] ^= 0x01
		if err := s.VerifyResponse(200, mut, sig); !errors.Is(err, ErrVerificationFailed) {
			t.Fatalf("byte %d flip: got %v, want ErrVerificationFailed", i, err)
		}
	}

	// Wrong status.
	if err := s.VerifyResponse(201, body, sig); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("status mismatch: got %v", err)
	}
}

func TestSignatureMutationRejected(t *testing.T) {
	s := newTestSigner(t)
	body := []byte("payload")
	sig := s.SignResponse(200, body)

	for i := range sig {
		mut := []byte(sig)
		if mut[i] == 'f' {
			mut[i] = '0'
		} else {
			mut[i] = 'f'
		}
		if string(mut) == sig {
			continue
		}
		if err := s.VerifyResponse(200, body, string(mut)); err == nil {
			t.Fatalf("mutation at %d accepted", i)
		}
	}
}

func TestMalformedSignatureRejected(t *testing.T) {
	s := newTestSigner(t)
	body := []byte("payload")
	digest := strings.TrimPrefix(s.SignResponse(200, body), "strixun:sha256:")

	bad := []string{
		"strixun:sha256",
		"strixun:md5:" + digest,
		"other:sha256:" + digest,
		"strixun:sha256:" + strings.ToUpper(digest),
		"strixun:sha256:" + digest[:40],
		"strixun:sha256:" + digest + "00",
		"strixun:sha256:zz" + digest[2:],
		"garbage",
	}
	for _, sig := range bad {
		if err := s.VerifyResponse(200, body, sig); !errors.Is(err, ErrVerificationFailed) {
			t.Fatalf("%q: got %v, want ErrVerificationFailed", sig, err)
		}
	}
}

func TestMissingHeaderDistinct(t *testing.T) {
	s := newTestSigner(t)
	err := s.VerifyResponse(200, []byte("x"), "")
	if !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("got %v, want ErrMissingHeader", err)
	}
	if errors.Is(err, ErrVerificationFailed) {
		t.Fatal("missing header must be distinguishable from a bad signature")
	}
}

func TestCrossNamespaceRejected(t *testing.T) {
	a := newTestSigner(t)
	b, err := New("otherns", "shared-keyphrase-for-tests")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	body := []byte("payload")
	if err := a.VerifyResponse(200, body, b.SignResponse(200, body)); err == nil {
		t.Fatal("accepted signature from a different namespace")
	}
}

func TestCrossKeyphraseRejected(t *testing.T) {
	a := newTestSigner(t)
	b, err := New("strixun", "a-different-keyphrase")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	body := []byte("payload")
	if err := a.VerifyResponse(200, body, b.SignResponse(200, body)); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("got %v, want ErrVerificationFailed", err)
	}
}
