package models

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
)

// blobKey is the AES key used for encrypting SecureBlob columns at rest.
// Set once at startup via SetBlobKey.
var blobKey []byte

// SetBlobKey configures the encryption key for SecureBlob columns.
// The key must be 16, 24 or 32 bytes (AES-128/192/256).
func SetBlobKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		blobKey = key
		return nil
	default:
		return fmt.Errorf("invalid blob key length %d", len(key))
	}
}

// SecureBlob is a JSON document stored encrypted (AES-GCM) in a bytea
// column. The nonce is prepended to the ciphertext.
type SecureBlob map[string]interface{}

// Value implements driver.Valuer.
func (b SecureBlob) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	if blobKey == nil {
		return nil, fmt.Errorf("secure blob key not configured")
	}

	plain, err := json.Marshal(map[string]interface{}(b))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(blobKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Scan implements sql.Scanner.
func (b *SecureBlob) Scan(src interface{}) error {
	if src == nil {
		*b = nil
		return nil
	}
	if blobKey == nil {
		return fmt.Errorf("secure blob key not configured")
	}

	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("secure blob: unsupported column type %T", src)
	}

	block, err := aes.NewCipher(blobKey)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	if len(raw) < gcm.NonceSize() {
		return fmt.Errorf("secure blob: ciphertext too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("secure blob: decrypt failed: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(plain, &out); err != nil {
		return err
	}
	*b = out
	return nil
}

// GormDataType tells gorm which column type to create.
func (SecureBlob) GormDataType() string {
	return "bytea"
}
