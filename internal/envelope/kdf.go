package envelope

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	keySize       = 32

	saltSize = 16
	ivSize   = 12
	hashSize = sha256.Size // 32 bytes
)

// deriveKey is a package variable so tests can instrument it and prove
// that malformed buffers are rejected before any key derivation work.
var deriveKey = func(credential string, salt []byte) []byte {
	return pbkdf2.Key([]byte(credential), salt, kdfIterations, keySize, sha256.New)
}

// TokenHash returns the raw SHA-256 digest of a bearer credential. This
// digest is the only access-control gate on an envelope: decryption
// compares it against the stored hash before touching the KDF.
func TokenHash(credential string) []byte {
	sum := sha256.Sum256([]byte(credential))
	return sum[:]
}

// TokenHashHex is the hex form used by the JSON envelope.
func TokenHashHex(credential string) string {
	return hex.EncodeToString(TokenHash(credential))
}

// Zero overwrites a byte slice in memory with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
