package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
)

// JSONVersion is the envelope version emitted by the JSON codec.
const JSONVersion = 3

const algorithm = "AES-GCM-256"

// Envelope is the JSON wire form of an encrypted payload. Field names
// are a cross-service contract and must not change.
type Envelope struct {
	Version   int    `json:"version"`
	Encrypted bool   `json:"encrypted"`
	Algorithm string `json:"algorithm"`
	IV        string `json:"iv"`
	Salt      string `json:"salt"`
	TokenHash string `json:"tokenHash"`
	Data      string `json:"data"`
}

// Result is the outcome of a JSON decrypt. Plain marks the documented
// pass-through case for payloads that were never encrypted, so callers
// can tell the two apart without sniffing.
type Result struct {
	Plain bool
	Value any
}

// EncryptJSON serializes v to JSON and seals it under a key derived
// from the bearer credential. Every call draws a fresh salt and IV.
func EncryptJSON(v any, credential string) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	key := deriveKey(credential, salt)
	defer Zero(key)

	aead, err := newGCM(key, ivSize)
	if err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, iv, plaintext, nil)

	return &Envelope{
		Version:   JSONVersion,
		Encrypted: true,
		Algorithm: algorithm,
		IV:        base64.StdEncoding.EncodeToString(iv),
		Salt:      base64.StdEncoding.EncodeToString(salt),
		TokenHash: TokenHashHex(credential),
		Data:      base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// DecryptJSON decodes raw JSON that may or may not be an envelope.
// Payloads without encrypted=true come back unchanged as Result.Plain;
// that is an explicit variant of the API, not an error fallback.
func DecryptJSON(raw []byte, credential string) (Result, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || !env.Encrypted {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return Result{}, ErrMalformedPlaintext
		}
		return Result{Plain: true, Value: v}, nil
	}

	pt, err := Open(&env, credential)
	if err != nil {
		return Result{}, err
	}
	var v any
	if err := json.Unmarshal(pt, &v); err != nil {
		return Result{}, ErrMalformedPlaintext
	}
	return Result{Value: v}, nil
}

// Open recovers the plaintext JSON bytes from an envelope. The token
// hash is checked before any key derivation; on mismatch no decryption
// is attempted under any circumstance.
func Open(env *Envelope, credential string) ([]byte, error) {
	if env.Version != JSONVersion {
		return nil, ErrUnsupportedVersion
	}
	want := []byte(env.TokenHash)
	got := []byte(TokenHashHex(credential))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return nil, ErrTokenMismatch
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	ct, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if len(salt) == 0 || len(iv) == 0 {
		return nil, ErrInvalidFormat
	}

	key := deriveKey(credential, salt)
	defer Zero(key)

	// Some producers use a 16-byte IV with AES-GCM; accept whatever
	// length the envelope carries rather than forcing the default.
	aead, err := newGCM(key, len(iv))
	if err != nil {
		return nil, ErrInvalidFormat
	}
	pt, err := aead.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if nonceSize == ivSize {
		return cipher.NewGCM(block)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}
