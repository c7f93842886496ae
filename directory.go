package envelope

import (
	"context"
	"fmt"
)

// Directory resolves an identity to its current PEM-encoded public key.
// Implementations are supplied by the calling layer: a database of
// registered identities, a static map in tests, or an external key service.
type Directory interface {
	// PublicKey returns the identity's SubjectPublicKeyInfo PEM public key,
	// or an error matching ErrIdentityNotFound when none is registered.
	PublicKey(ctx context.Context, identity string) ([]byte, error)
}

// StaticDirectory is an in-memory Directory backed by a fixed map of
// identity to PEM public key.
type StaticDirectory map[string][]byte

// PublicKey implements Directory.
func (d StaticDirectory) PublicKey(_ context.Context, identity string) ([]byte, error) {
	key, ok := d[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrIdentityNotFound, identity)
	}
	return key, nil
}

// ResolveRecipients looks up the public key of every identity through the
// directory. It is all-or-nothing: the first unresolvable identity aborts
// the lookup with a [MissingRecipientKeyError] naming it, and nothing is
// returned.
func ResolveRecipients(ctx context.Context, dir Directory, identities []string) (map[string][]byte, error) {
	keys := make(map[string][]byte, len(identities))
	for _, identity := range identities {
		key, err := dir.PublicKey(ctx, identity)
		if err != nil {
			return nil, &MissingRecipientKeyError{Identity: identity, Err: err}
		}
		keys[identity] = key
	}
	return keys, nil
}
