package envelope

import (
	"errors"
	"fmt"

	"github.com/cipherline/envelope-go/internal/crypto"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrKeyGeneration is returned when identity key pair generation fails.
	// Entropy and backend failures are fatal and never retried.
	ErrKeyGeneration = crypto.ErrKeyGeneration

	// ErrMissingRecipientKey is returned when an intended recipient has no
	// usable public key. The whole encryption aborts; nothing is produced.
	ErrMissingRecipientKey = errors.New("recipient public key missing or unusable")

	// ErrNoRecipients is returned when encryption is attempted with an
	// empty recipient set.
	ErrNoRecipients = errors.New("no recipients")

	// ErrAccessDenied is returned when the requesting identity is not in
	// the envelope's key map. This is an authorization outcome, not a bug.
	ErrAccessDenied = errors.New("identity not among envelope recipients")

	// ErrDecryptionFailed is returned for every cryptographic failure
	// during decryption: wrong key, tampered ciphertext, or corrupted
	// input. The cause is deliberately undifferentiated.
	ErrDecryptionFailed = crypto.ErrDecryptionFailed

	// ErrPayloadTooLarge is returned when an attachment payload exceeds
	// the codec's configured ceiling.
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")

	// ErrInvalidEnvelope is returned when a stored envelope is structurally
	// invalid: bad base64, missing fields, or a malformed key map.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrConversationNotFound is returned when a conversation does not
	// exist or the identity is not a participant.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound is returned when a message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrAttachmentNotFound is returned when an attachment does not exist.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrIdentityNotFound is returned when an identity has no registered
	// public key in the directory.
	ErrIdentityNotFound = errors.New("identity not found")
)

// EnvelopeError is implemented by all errors defined by this package.
type EnvelopeError interface {
	error
	EnvelopeError() // marker method
}

// MissingRecipientKeyError reports the identity that made a multi-recipient
// encryption abort. It matches ErrMissingRecipientKey with errors.Is.
type MissingRecipientKeyError struct {
	// Identity is the recipient with no usable public key.
	Identity string
	// Err is the underlying parse error, if any.
	Err error
}

func (e *MissingRecipientKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no usable public key for %q: %v", e.Identity, e.Err)
	}
	return fmt.Sprintf("no usable public key for %q", e.Identity)
}

// Unwrap returns the underlying error.
func (e *MissingRecipientKeyError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *MissingRecipientKeyError) Is(target error) bool {
	return target == ErrMissingRecipientKey
}

// EnvelopeError implements the EnvelopeError interface.
func (e *MissingRecipientKeyError) EnvelopeError() {}

// AccessDeniedError reports a decryption attempt by an identity that is not
// in the envelope's key map. It matches ErrAccessDenied with errors.Is.
type AccessDeniedError struct {
	// Identity is the requesting identity.
	Identity string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %q is not among the envelope recipients", e.Identity)
}

// Is implements errors.Is for sentinel error matching.
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// EnvelopeError implements the EnvelopeError interface.
func (e *AccessDeniedError) EnvelopeError() {}

// PayloadTooLargeError reports an attachment payload over the configured
// ceiling. It matches ErrPayloadTooLarge with errors.Is.
type PayloadTooLargeError struct {
	// Size is the payload size in bytes.
	Size int64
	// Limit is the configured ceiling in bytes.
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// Is implements errors.Is for sentinel error matching.
func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

// EnvelopeError implements the EnvelopeError interface.
func (e *PayloadTooLargeError) EnvelopeError() {}
