package envelope

import "errors"

var (
	// ErrTokenMismatch means the supplied credential does not match the
	// tokenHash stored in the envelope. Decryption never proceeds past
	// this check; there is no recovery path.
	ErrTokenMismatch = errors.New("envelope: credential does not match token hash")

	// ErrDecryptionFailed means AEAD authentication failed: the
	// ciphertext was tampered with, or the key material is wrong despite
	// a matching token hash.
	ErrDecryptionFailed = errors.New("envelope: decryption failed")

	ErrMalformedPlaintext = errors.New("envelope: decrypted payload is not valid JSON")
	ErrInvalidFormat      = errors.New("envelope: invalid format")
	ErrUnsupportedVersion = errors.New("envelope: unsupported version")
)
