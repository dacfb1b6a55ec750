/*
Package meshcrypto provides payload confidentiality for mesh packets under a
shared network key.

There is no MAC beyond the codec's unkeyed CRC-16: an attacker in possession
of the network key can forge arbitrary traffic, and an attacker without it
can still flip ciphertext bits that are only caught by the resulting
plaintext failing to parse as JSON. Reusing the message UUID as the AES-CBC
IV is only safe because every originated message carries a freshly random
UUID; it must never be reused across two different plaintexts under the same
key.
*/
package meshcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
)

// KeySize is the width of the normalized network key used for AES-128-CBC.
const KeySize = 16

// NormalizeKey truncates or zero-pads networkKey on the right to KeySize
// bytes.
func NormalizeKey(networkKey []byte) (key [KeySize]byte) {
	n := len(networkKey)
	if n > KeySize {
		n = KeySize
	}
	copy(key[:], networkKey[:n])
	return key
}

// IV derives the AES-CBC initialization vector from a message UUID: the
// entire 16-byte UUID, unmodified. This lets any receiver decrypt without a
// prior key exchange or negotiation round.
func IV(messageUUID [16]byte) [16]byte {
	return messageUUID
}

// Encrypt serializes plaintext to JSON, PKCS#7-pads it to the AES block
// size, and encrypts it with AES-128-CBC under (key, iv).
func Encrypt(plaintext interface{}, key [KeySize]byte, iv [16]byte) ([]byte, error) {
	data, err := json.Marshal(plaintext)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(data, aes.BlockSize)
	ciphertext := make([]byte, len(padded))

	mode := cipher.NewCBCEncrypter(block, iv[:])
	mode.CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

// Decrypt is the inverse of Encrypt: it decrypts ciphertext with
// AES-128-CBC under (key, iv), strips PKCS#7 padding, and unmarshals the
// result into out. It returns DecryptFailed on a padding or length error and
// BadPayload if the stripped plaintext is not valid JSON for out's shape.
func Decrypt(ciphertext []byte, key [KeySize]byte, iv [16]byte, out interface{}) error {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return newError(DecryptFailed, err.Error())
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return newError(DecryptFailed, "ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv[:])
	mode.CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return newError(DecryptFailed, err.Error())
	}

	if err := json.Unmarshal(unpadded, out); err != nil {
		return newError(BadPayload, err.Error())
	}

	return nil
}

// DecryptRaw is like Decrypt but returns the validated plaintext JSON bytes
// instead of unmarshaling into a caller-provided type, for callers that only
// know the shape after inspecting a "type" field.
func DecryptRaw(ciphertext []byte, key [KeySize]byte, iv [16]byte) ([]byte, error) {
	var raw json.RawMessage
	if err := Decrypt(ciphertext, key, iv, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte(nil), data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errInvalidPadding
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errInvalidPadding
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errInvalidPadding
		}
	}

	return data[:len(data)-padLen], nil
}
