package envelope

import (
	"bytes"
	"errors"
	"testing"
)

func TestBinaryRoundTrip(t *testing.T) {
	cred := randCredential(t)
	for _, n := range []int{0, 1, 64, 4096, 1 << 20} {
		pt := randBytes(t, n)
		env, err := EncryptBinary(pt, cred)
		if err != nil {
			t.Fatalf("encrypt %d bytes: %v", n, err)
		}
		out, err := DecryptBinary(env, cred)
		if err != nil {
			t.Fatalf("decrypt %d bytes: %v", n, err)
		}
		if !bytes.Equal(pt, out) {
			t.Fatalf("round trip mismatch at %d bytes", n)
		}
	}
}

func TestBinaryRoundTripCompressible(t *testing.T) {
	cred := randCredential(t)
	pt := bytes.Repeat([]byte("abcd"), 2500) // 10 000 bytes, period 4
	env, err := EncryptBinary(pt, cred)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if env[1] != 1 {
		t.Fatal("expected compression flag set for repeating input")
	}
	if len(env) >= len(pt)+minSize {
		t.Fatalf("envelope %d bytes is not smaller than input+header %d", len(env), len(pt)+minSize)
	}
	out, err := DecryptBinary(env, cred)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("round trip mismatch")
	}
}

func TestBinaryIncompressibleOverhead(t *testing.T) {
	cred := randCredential(t)
	pt := randBytes(t, 1000)
	env, err := EncryptBinary(pt, cred)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if env[1] != 0 {
		t.Fatal("random input should not be compressed")
	}
	if len(env) > len(pt)+70 {
		t.Fatalf("overhead too large: %d bytes", len(env)-len(pt))
	}
}

func TestBinaryTokenMismatch(t *testing.T) {
	env, err := EncryptBinary([]byte("stream key"), "credential-one")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptBinary(env, "credential-two"); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("got %v, want ErrTokenMismatch", err)
	}
}

func TestBinaryFormatRejection(t *testing.T) {
	cred := randCredential(t)
	env, err := EncryptBinary([]byte("payload"), cred)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	derivations := 0
	orig := deriveKey
	deriveKey = func(credential string, salt []byte) []byte {
		derivations++
		return orig(credential, salt)
	}
	defer func() { deriveKey = orig }()

	cases := []struct {
		name string
		mut  func([]byte) []byte
		want error
	}{
		{"short header", func(b []byte) []byte { return b[:3] }, ErrInvalidFormat},
		{"below minimum", func(b []byte) []byte { return b[:64] }, ErrInvalidFormat},
		{"unknown version", func(b []byte) []byte { b[0] = 7; return b }, ErrUnsupportedVersion},
		{"bad compression flag", func(b []byte) []byte { b[1] = 2; return b }, ErrInvalidFormat},
		{"bad salt length", func(b []byte) []byte { b[2] = 32; return b }, ErrInvalidFormat},
		{"bad iv length", func(b []byte) []byte { b[3] = 16; return b }, ErrInvalidFormat},
		{"bad hash length", func(b []byte) []byte { b[4] = 64; return b }, ErrInvalidFormat},
	}
	for _, tc := range cases {
		buf := tc.mut(append([]byte(nil), env...))
		if _, err := DecryptBinary(buf, cred); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
	if derivations != 0 {
		t.Fatalf("key derivation ran %d times for rejected buffers", derivations)
	}
}

func TestBinaryCiphertextTamper(t *testing.T) {
	cred := randCredential(t)
	env, err := EncryptBinary([]byte("tamper me"), cred)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	mut := append([]byte(nil), env...)
	mut[len(mut)-1] ^= 0xFF
	if _, err := DecryptBinary(mut, cred); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("got %v, want ErrDecryptionFailed", err)
	}
}

func TestBinaryUniqueSaltAndIV(t *testing.T) {
	cred := randCredential(t)
	env1, err := EncryptBinary([]byte("data"), cred)
	if err != nil {
		t.Fatalf("encrypt1: %v", err)
	}
	env2, err := EncryptBinary([]byte("data"), cred)
	if err != nil {
		t.Fatalf("encrypt2: %v", err)
	}
	if !bytes.Equal(env1[:headerSize], env2[:headerSize]) {
		t.Fatal("expected identical headers")
	}
	if bytes.Equal(env1[headerSize:headerSize+saltSize], env2[headerSize:headerSize+saltSize]) {
		t.Fatal("expected distinct salts")
	}
	if bytes.Equal(env1[headerSize+saltSize:headerSize+saltSize+ivSize], env2[headerSize+saltSize:headerSize+saltSize+ivSize]) {
		t.Fatal("expected distinct IVs")
	}
}
