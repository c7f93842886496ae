package envelope

import (
	"github.com/cipherline/envelope-go/internal/crypto"
)

// KeyPair is a PEM-encoded RSA-2048 identity key pair. Each identity owns
// exactly one pair at a time. The private half belongs to the identity's
// caller alone: this package handles it only transiently, inside the single
// provisioning call that creates it and inside individual decrypt calls.
type KeyPair struct {
	// PrivateKeyPEM is the unencrypted PKCS#8 private key in PEM form.
	PrivateKeyPEM []byte
	// PublicKeyPEM is the SubjectPublicKeyInfo public key in PEM form.
	PublicKeyPEM []byte
}

// GenerateIdentityKeyPair provisions a fresh RSA-2048 key pair (public
// exponent 65537). It fails with ErrKeyGeneration on an entropy or backend
// failure; such failures are fatal and not retried.
func GenerateIdentityKeyPair() (*KeyPair, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PrivateKeyPEM: kp.PrivateKeyPEM,
		PublicKeyPEM:  kp.PublicKeyPEM,
	}, nil
}
