// Package envelope implements hybrid envelope encryption for multi-party
// messaging: one bulk ciphertext per message, with the content key wrapped
// separately for every recipient.
//
// # Model
//
// Each identity holds exactly one RSA-2048 key pair, provisioned with
// [GenerateIdentityKeyPair]. Encrypting a payload with [Encrypt] generates a
// fresh AES-256 content key and IV, encrypts the payload once with
// AES-256-CBC, and wraps the content key under every recipient's public key
// with RSA-OAEP-SHA-256. The result is an [Envelope]: ciphertext, IV, and a
// per-recipient [KeyMap]. Any recipient in the key map can independently
// recover the identical plaintext with [Decrypt]; an identity absent from
// the key map deterministically fails with [ErrAccessDenied].
//
// Fan-out is all-or-nothing: if any intended recipient lacks a usable public
// key, Encrypt aborts before producing anything and reports the identity via
// [MissingRecipientKeyError].
//
// Binary attachments go through [AttachmentCodec], which applies the same
// pipeline up to a configured size ceiling and owns the text-safe base64
// encoding of the ciphertext for storage and transport.
//
// # Concurrency
//
// Every encrypt and decrypt call is a pure computation over its own
// ephemeral key material and touches no shared state, so calls may run
// concurrently without coordination. Persisting an envelope, resolving
// recipient keys, and keeping fields from different encryption calls apart
// are the caller's responsibility; [Messenger] is the reference calling
// layer that does all three.
//
// # Security Notes
//
// The bulk cipher carries no integrity tag and the key map no independent
// checksum: tampering surfaces as [ErrDecryptionFailed] through padding or
// chaining mismatches, and a corrupted key-map entry is detected only at
// that recipient's decrypt. This preserves the stored envelope format.
// Failed decrypts must be shown to users only as a generic failure; the
// error values here never carry key material.
package envelope
