package envelope

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"io"

	"github.com/klauspost/compress/gzip"
)

// BinaryVersion is the envelope version emitted by the binary codec.
const BinaryVersion = 5

// Binary wire layout:
//
//	[version][compressionFlag][saltLen][ivLen][hashLen]  5-byte header
//	salt(16) || iv(12) || tokenHash(32, raw) || ciphertext
//
// The length bytes are fixed protocol constants; a mismatch is a format
// error, never a silent correction.
const (
	headerSize = 5
	minSize    = headerSize + saltSize + ivSize + hashSize // 65 bytes
)

// EncryptBinary seals a raw byte buffer into a compact binary envelope.
// The payload is gzip-compressed first when that actually shrinks it;
// compression is best-effort and never fails the operation.
func EncryptBinary(data []byte, credential string) ([]byte, error) {
	payload := data
	var flag byte
	if packed, ok := deflate(data); ok {
		payload = packed
		flag = 1
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
	ct := aead.Seal(nil, iv, payload, nil)

	out := make([]byte, 0, minSize+len(ct))
	out = append(out, BinaryVersion, flag, saltSize, ivSize, hashSize)
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, TokenHash(credential)...)
	out = append(out, ct...)
	return out, nil
}

// DecryptBinary validates, authenticates and opens a binary envelope.
// Format checks run before the token-hash gate, which runs before any
// key derivation.
func DecryptBinary(buf []byte, credential string) ([]byte, error) {
	if len(buf) < headerSize {
		return nil, ErrInvalidFormat
	}
	if buf[0] != BinaryVersion {
		return nil, ErrUnsupportedVersion
	}
	flag := buf[1]
	if flag > 1 {
		return nil, ErrInvalidFormat
	}
	if buf[2] != saltSize || buf[3] != ivSize || buf[4] != hashSize {
		return nil, ErrInvalidFormat
	}
	if len(buf) < minSize {
		return nil, ErrInvalidFormat
	}

	salt := buf[headerSize : headerSize+saltSize]
	iv := buf[headerSize+saltSize : headerSize+saltSize+ivSize]
	storedHash := buf[headerSize+saltSize+ivSize : minSize]
	ct := buf[minSize:]

	if subtle.ConstantTimeCompare(storedHash, TokenHash(credential)) != 1 {
		return nil, ErrTokenMismatch
	}

	key := deriveKey(credential, salt)
	defer Zero(key)

	aead, err := newGCM(key, ivSize)
	if err != nil {
		return nil, err
	}
	payload, err := aead.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	if flag == 1 {
		return inflate(payload)
	}
	return payload, nil
}

// deflate gzips data and reports whether the result is strictly smaller
// than the input. Any compression error falls back to raw bytes.
func deflate(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(data) {
		return nil, false
	}
	return buf.Bytes(), true
}

func inflate(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidFormat
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	return out, nil
}
