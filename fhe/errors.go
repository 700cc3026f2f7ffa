package fhe

import "errors"

var (
	// ErrEncoding is returned when a plaintext does not fit the bit width of
	// its declared type. It is caller-fixable and never retried.
	ErrEncoding = errors.New("value out of range for encrypted type")
	// ErrEncryptionUnavailable is returned when the relayer cannot be reached.
	ErrEncryptionUnavailable = errors.New("encryption service unavailable")
	// ErrInvalidInputProof is returned when a ciphertext or its input proof
	// does not verify for the claimed binding.
	ErrInvalidInputProof = errors.New("invalid input proof")
	// ErrRevealUnavailable is returned when the reveal authority cannot be
	// reached.
	ErrRevealUnavailable = errors.New("reveal authority unavailable")
	// ErrAuthorizationExpired is returned when the authorization validity
	// window does not include the current time. Re-sign and retry.
	ErrAuthorizationExpired = errors.New("decryption authorization expired")
	// ErrAuthorizationRejected is returned when the authorization does not
	// entitle its signer to the requested handle.
	ErrAuthorizationRejected = errors.New("decryption authorization rejected")
)
