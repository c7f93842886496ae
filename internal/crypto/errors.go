package crypto

import "errors"

var (
	// ErrKeyGeneration is returned when key pair generation fails. This is
	// an entropy or backend failure and is not retried.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrInvalidKeySize is returned when the content key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidIVSize is returned when the IV size is invalid.
	ErrInvalidIVSize = errors.New("invalid IV size")

	// ErrInvalidPublicKey is returned when a public key cannot be parsed
	// from PEM or is not an RSA key.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when a private key cannot be parsed
	// from PEM or is not an RSA key.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrWrapTooLarge is returned when the plaintext exceeds the OAEP
	// capacity of the modulus.
	ErrWrapTooLarge = errors.New("plaintext too large to wrap")

	// ErrKeyUnwrap is returned when unwrapping a content key fails. It
	// deliberately does not distinguish a wrong private key from a
	// malformed wrapped key.
	ErrKeyUnwrap = errors.New("key unwrap failed")

	// ErrDecryptionFailed is returned when bulk decryption fails for any
	// reason: bad ciphertext length, chaining mismatch, or invalid padding.
	// The cause is deliberately not exposed.
	ErrDecryptionFailed = errors.New("decryption failed")
)
