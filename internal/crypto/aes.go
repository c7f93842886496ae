package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// EncryptAES encrypts plaintext with AES-256-CBC after applying PKCS#7
// padding. The ciphertext does not embed the IV; callers store it alongside.
func EncryptAES(key, plaintext, iv []byte) ([]byte, error) {
	if len(key) != ContentKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), ContentKeySize)
	}

	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(iv), IVSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := padPKCS7(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

// DecryptAES decrypts an AES-256-CBC ciphertext and strips PKCS#7 padding.
// Every failure mode past the size checks (truncated ciphertext, bad
// padding) is reported as ErrDecryptionFailed.
func DecryptAES(key, ciphertext, iv []byte) ([]byte, error) {
	if len(key) != ContentKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), ContentKeySize)
	}

	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(iv), IVSize)
	}

	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, ok := unpadPKCS7(padded, BlockSize)
	if !ok {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// padPKCS7 pads data to a multiple of blockSize. A full block of padding is
// added when the input is already block-aligned.
func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpadPKCS7 validates and strips PKCS#7 padding. It returns false for any
// malformed padding; callers must map that to a single coarse error.
func unpadPKCS7(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}

	return data[:len(data)-n], true
}
