package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tickit/guild-ticket-service/internal/config"
)

// Cipher encrypts self-hosting passwords with AES-256-CBC using a fixed
// key/IV pair, hex in and out, matching what the dashboard stores.
type Cipher struct {
	key []byte
	iv  []byte
}

const derivationSalt = "tickit-config-encryption"

// NewCipher builds a Cipher from config. Key must be 32 bytes hex and
// IV 16 bytes hex; a key that is not valid hex is treated as a
// passphrase and both key and IV are derived from it.
func NewCipher(cfg config.EncryptionConfig) (*Cipher, error) {
	if cfg.Key == "" {
		return nil, errors.New("encryption key required")
	}

	key, keyErr := hex.DecodeString(cfg.Key)
	iv, ivErr := hex.DecodeString(cfg.IV)
	if keyErr == nil && len(key) == 32 && ivErr == nil && len(iv) == aes.BlockSize {
		return &Cipher{key: key, iv: iv}, nil
	}

	derived := pbkdf2.Key([]byte(cfg.Key), []byte(derivationSalt), 4096, 32+aes.BlockSize, sha256.New)
	return &Cipher{key: derived[:32], iv: derived[32:]}, nil
}

// Encrypt returns the hex ciphertext of plain.
func (c *Cipher) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	padded := pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encrypted string) (string, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a whole number of blocks")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)
	plain, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
