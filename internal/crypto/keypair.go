package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
)

// randReader is the random source used for key generation and IVs.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func randSource() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

const (
	pemTypePrivateKey = "PRIVATE KEY"
	pemTypePublicKey  = "PUBLIC KEY"
)

// KeyPair holds a PEM-encoded RSA-2048 identity key pair. The private half
// is PKCS#8, the public half SubjectPublicKeyInfo.
type KeyPair struct {
	// PrivateKeyPEM is the PKCS#8 private key in PEM form.
	PrivateKeyPEM []byte
	// PublicKeyPEM is the SubjectPublicKeyInfo public key in PEM form.
	PublicKeyPEM []byte
}

// GenerateKeyPair creates a new RSA-2048 key pair with public exponent 65537
// and returns it PEM-encoded.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(randSource(), RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	// MarshalPKIXPublicKey never fails for a valid RSA public key
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return &KeyPair{
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: privDER}),
		PublicKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: pubDER}),
	}, nil
}

// ParsePublicKey parses a PEM-encoded SubjectPublicKeyInfo RSA public key.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM encoded", ErrInvalidPublicKey)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPublicKey)
	}

	return rsaPub, nil
}

// ParsePrivateKey parses a PEM-encoded PKCS#8 RSA private key. PKCS#1 blocks
// are accepted as well for keys produced by older tooling.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM encoded", ErrInvalidPrivateKey)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		if rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes); err1 == nil {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPrivateKey)
	}

	return rsaKey, nil
}

// GenerateContentKey returns a fresh random 256-bit content key.
func GenerateContentKey() ([]byte, error) {
	key := make([]byte, ContentKeySize)
	if _, err := io.ReadFull(randSource(), key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return key, nil
}

// GenerateIV returns a fresh random 128-bit initialization vector.
func GenerateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(randSource(), iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	return iv, nil
}
