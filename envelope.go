package envelope

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cipherline/envelope-go/internal/crypto"
)

// KeyMap maps a recipient identity to the content key wrapped under that
// identity's public key. One entry per recipient; insertion order is
// irrelevant. Compromise of one entry does not reveal the plaintext or any
// other entry without that identity's private key.
//
// In memory the wrapped keys are raw bytes; the JSON form is an object with
// string identity keys and base64 string values, matching the persisted
// envelope format.
type KeyMap map[string][]byte

// MarshalJSON encodes the key map as {"identity": "base64-wrapped-key", ...}.
func (m KeyMap) MarshalJSON() ([]byte, error) {
	encoded := make(map[string]string, len(m))
	for identity, wrapped := range m {
		encoded[identity] = crypto.ToBase64(wrapped)
	}
	return json.Marshal(encoded)
}

// UnmarshalJSON decodes the persisted JSON object form.
func (m *KeyMap) UnmarshalJSON(data []byte) error {
	var encoded map[string]string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	decoded := make(KeyMap, len(encoded))
	for identity, b64 := range encoded {
		wrapped, err := crypto.FromBase64(b64)
		if err != nil {
			return fmt.Errorf("%w: key map entry for %q: %v", ErrInvalidEnvelope, identity, err)
		}
		decoded[identity] = wrapped
	}

	*m = decoded
	return nil
}

// Recipients returns the identities present in the key map, sorted.
func (m KeyMap) Recipients() []string {
	ids := make([]string, 0, len(m))
	for identity := range m {
		ids = append(ids, identity)
	}
	sort.Strings(ids)
	return ids
}

// Envelope is the bundle produced by one encryption operation: the bulk
// ciphertext, the IV used for it, and the per-recipient key map. The
// envelope persists for the lifetime of the owning message or attachment;
// its fields must never be mixed with fields from a different operation.
type Envelope struct {
	// Ciphertext is the AES-256-CBC encryption of the padded payload.
	Ciphertext []byte
	// IV is the 16-byte initialization vector. Not secret.
	IV []byte
	// Keys is the per-recipient wrapped-key map.
	Keys KeyMap
}

// envelopeJSON is the persisted/transmitted form: every binary field as
// standard base64.
type envelopeJSON struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Keys       KeyMap `json:"keys"`
}

// MarshalJSON encodes the envelope in its persisted form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		Ciphertext: crypto.ToBase64(e.Ciphertext),
		IV:         crypto.ToBase64(e.IV),
		Keys:       e.Keys,
	})
}

// UnmarshalJSON decodes the persisted form.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	ciphertext, err := crypto.FromBase64(raw.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: ciphertext: %v", ErrInvalidEnvelope, err)
	}

	iv, err := crypto.FromBase64(raw.IV)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", ErrInvalidEnvelope, err)
	}

	e.Ciphertext = ciphertext
	e.IV = iv
	e.Keys = raw.Keys
	return nil
}

// HasRecipient reports whether the identity can decrypt this envelope.
func (e *Envelope) HasRecipient(identity string) bool {
	_, ok := e.Keys[identity]
	return ok
}

// validate checks the structural invariants of a stored envelope before any
// cryptographic work is attempted.
func (e *Envelope) validate() error {
	if e == nil || len(e.Ciphertext) == 0 {
		return fmt.Errorf("%w: empty ciphertext", ErrInvalidEnvelope)
	}
	if len(e.IV) != crypto.IVSize {
		return fmt.Errorf("%w: iv length %d", ErrInvalidEnvelope, len(e.IV))
	}
	if len(e.Keys) == 0 {
		return fmt.Errorf("%w: empty key map", ErrInvalidEnvelope)
	}
	return nil
}
