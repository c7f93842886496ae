package envelope

import (
	"crypto/rsa"

	"github.com/cipherline/envelope-go/internal/crypto"
)

// Encrypt encrypts a payload for every identity in recipientKeys, which maps
// identity to that identity's PEM-encoded public key. Whether the sender
// appears in the map is the caller's policy; include it for self-read access.
//
// One fresh content key and IV are generated per call, the payload is
// encrypted once, and the content key is wrapped under every recipient's
// public key. The returned envelope's key map has exactly one entry per
// recipient.
//
// The operation is all-or-nothing: if any recipient's key is missing or
// unparsable, Encrypt returns a [MissingRecipientKeyError] naming that
// identity before any output is produced. An empty recipient set fails with
// ErrNoRecipients. The call performs no I/O.
func Encrypt(payload []byte, recipientKeys map[string][]byte) (*Envelope, error) {
	if len(recipientKeys) == 0 {
		return nil, ErrNoRecipients
	}

	// Parse every key up front so a bad recipient aborts before any
	// ciphertext or key material exists.
	parsed := make(map[string]*rsa.PublicKey, len(recipientKeys))
	for identity, pemKey := range recipientKeys {
		if len(pemKey) == 0 {
			return nil, &MissingRecipientKeyError{Identity: identity}
		}
		pub, err := crypto.ParsePublicKey(pemKey)
		if err != nil {
			return nil, &MissingRecipientKeyError{Identity: identity, Err: err}
		}
		parsed[identity] = pub
	}

	contentKey, err := crypto.GenerateContentKey()
	if err != nil {
		return nil, err
	}
	defer zero(contentKey)

	iv, err := crypto.GenerateIV()
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto.EncryptAES(contentKey, payload, iv)
	if err != nil {
		return nil, err
	}

	keys := make(KeyMap, len(parsed))
	for identity, pub := range parsed {
		wrapped, err := crypto.WrapKey(contentKey, pub)
		if err != nil {
			return nil, &MissingRecipientKeyError{Identity: identity, Err: err}
		}
		keys[identity] = wrapped
	}

	return &Envelope{
		Ciphertext: ciphertext,
		IV:         iv,
		Keys:       keys,
	}, nil
}

// zero overwrites transient key material. The key still existed in memory
// during the call; this only shortens its lifetime.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
