package elgamal

import "errors"

var (
	// ErrOutOfRange is returned when the plaintext is not in the searched interval.
	ErrOutOfRange = errors.New("discrete log not found in interval")
	// ErrInvalidCiphertext is returned for malformed ciphertext encodings.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrInvalidProof is returned when a proof of knowledge does not verify.
	ErrInvalidProof = errors.New("invalid proof of knowledge")
)
