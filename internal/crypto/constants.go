package crypto

const (
	// RSAKeyBits is the modulus size of an identity key pair in bits.
	RSAKeyBits = 2048

	// WrappedKeySize is the size of a wrapped content key in bytes.
	// RSA ciphertext length equals the modulus length regardless of the
	// plaintext, so this is constant for RSA-2048.
	WrappedKeySize = RSAKeyBits / 8

	// MaxWrapSize is the largest plaintext OAEP-SHA-256 can wrap under a
	// 2048-bit modulus: 256 - 2*32 - 2 bytes.
	MaxWrapSize = WrappedKeySize - 2*32 - 2

	// ContentKeySize is the size of an AES-256 content key in bytes.
	ContentKeySize = 32

	// BlockSize is the AES block size in bytes.
	BlockSize = 16

	// IVSize is the size of a CBC initialization vector in bytes. It equals
	// the block size.
	IVSize = BlockSize
)

// CipherSuite is the canonical string representation of the algorithm suite.
var CipherSuite = "RSA-2048-OAEP-SHA256:AES-256-CBC-PKCS7"
