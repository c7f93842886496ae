package envelope

import (
	"errors"

	"github.com/cipherline/envelope-go/internal/crypto"
)

// Decrypt recovers the plaintext of an envelope for the requesting identity
// using that identity's PEM-encoded private key.
//
// If the identity is absent from the envelope's key map, Decrypt fails
// immediately with an [AccessDeniedError] and attempts no cryptographic
// operation. Past that point, every lower-level failure other than an
// unparsable private key surfaces as the single coarse ErrDecryptionFailed,
// so callers cannot distinguish a wrong key from tampered input.
func Decrypt(env *Envelope, identity string, privateKeyPEM []byte) ([]byte, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}

	wrapped, ok := env.Keys[identity]
	if !ok {
		return nil, &AccessDeniedError{Identity: identity}
	}

	priv, err := crypto.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	contentKey, err := crypto.UnwrapKey(wrapped, priv)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer zero(contentKey)

	plaintext, err := crypto.DecryptAES(contentKey, env.Ciphertext, env.IV)
	if err != nil {
		// DecryptAES also rejects a malformed unwrapped key; either way the
		// caller sees one undifferentiated failure.
		if !errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, ErrDecryptionFailed
		}
		return nil, err
	}

	return plaintext, nil
}
