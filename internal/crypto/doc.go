// Package crypto provides the cryptographic primitives for the envelope
// encryption scheme: asymmetric key provisioning, bulk symmetric encryption,
// and symmetric-key wrapping.
//
// # Algorithm Suite
//
// The package uses the following algorithms:
//
//   - RSA-2048 with OAEP-SHA-256 padding: asymmetric wrapping of content
//     keys. OAEP is randomized, so wrapping the same key twice yields
//     different ciphertexts.
//
//   - AES-256-CBC with PKCS#7 padding: bulk encryption of message and
//     attachment payloads. One ciphertext is produced per operation
//     regardless of the number of recipients.
//
// Keys are exchanged in PEM form: private keys as PKCS#8, public keys as
// SubjectPublicKeyInfo.
//
// # Security Model
//
// Each encryption operation uses a fresh 256-bit content key and a fresh
// 128-bit IV. The content key lives only in memory for the duration of one
// call and is never persisted unwrapped.
//
// AES-CBC carries no integrity tag. Tampering is detected only incidentally,
// through padding or chaining mismatches, and every such mismatch is reported
// as the same [ErrDecryptionFailed] so that callers cannot be turned into a
// padding oracle. This matches the stored envelope format; upgrading to an
// authenticated mode would change it.
//
// Unwrap failures are likewise folded into a single [ErrKeyUnwrap] that does
// not distinguish a wrong private key from a malformed wrapped key.
//
// # Key Management
//
// Use [GenerateKeyPair] to create a new RSA-2048 key pair. Private keys are
// handled transiently by decrypt calls; callers must never log or persist
// them beyond the provisioning step that creates them.
package crypto
