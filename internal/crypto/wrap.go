package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// WrapKey encrypts a content key under a recipient's public key using
// RSA-OAEP-SHA-256. OAEP is randomized: wrapping the same key twice yields
// different ciphertexts. The output length is always WrappedKeySize.
func WrapKey(contentKey []byte, pub *rsa.PublicKey) ([]byte, error) {
	if len(contentKey) > MaxWrapSize {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrWrapTooLarge, len(contentKey), MaxWrapSize)
	}

	// OAEP reads its seed from the random source; crypto/rand is used
	// directly so wrapping stays randomized even under the test override.
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, contentKey, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	return wrapped, nil
}

// UnwrapKey decrypts a wrapped content key with the recipient's private key.
// Any failure, whether a wrong key or tampered input, is reported as the
// same ErrKeyUnwrap.
func UnwrapKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	contentKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, ErrKeyUnwrap
	}
	return contentKey, nil
}
