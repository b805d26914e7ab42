package envelope

import (
	"crypto/rand"
	"testing"
)

func benchCredential(b *testing.B) string {
	b.Helper()
	return "bench-credential-0123456789abcdef"
}

func BenchmarkBinaryEncrypt1KB(b *testing.B) {
	cred := benchCredential(b)
	pt := make([]byte, 1024)
	rand.Read(pt)
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncryptBinary(pt, cred); err != nil {
			b.Fatalf("encrypt failed: %v", err)
		}
	}
}

func BenchmarkBinaryDecrypt1KB(b *testing.B) {
	cred := benchCredential(b)
	pt := make([]byte, 1024)
	rand.Read(pt)
	env, err := EncryptBinary(pt, cred)
	if err != nil {
		b.Fatalf("encrypt failed: %v", err)
	}
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecryptBinary(env, cred); err != nil {
			b.Fatalf("decrypt failed: %v", err)
		}
	}
}

func BenchmarkBinaryEncrypt1MB(b *testing.B) {
	cred := benchCredential(b)
	pt := make([]byte, 1<<20)
	rand.Read(pt)
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncryptBinary(pt, cred); err != nil {
			b.Fatalf("encrypt failed: %v", err)
		}
	}
}

func BenchmarkJSONEncrypt1KB(b *testing.B) {
	cred := benchCredential(b)
	pt := make([]byte, 1024)
	rand.Read(pt)
	payload := map[string]any{"data": pt}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncryptJSON(payload, cred); err != nil {
			b.Fatalf("encrypt failed: %v", err)
		}
	}
}
