package mockd

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltSize = 32

// Sealed format: salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
const sealHeaderSize = saltSize + 4 + 4 + 1

// sealParams are the Argon2id costs. They are far below what a real wallet
// uses so that test runs stay fast.
type sealParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

var defaultSealParams = sealParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1}

var errBadPassword = errors.New("invalid password")

func sealKey(password, salt []byte, p sealParams) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// seal encrypts data under password with Argon2id and XChaCha20-Poly1305.
func seal(data []byte, password string, p sealParams) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := sealKey([]byte(password), salt, p)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, sealHeaderSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, p.Memory)
	out = binary.LittleEndian.AppendUint32(out, p.Iterations)
	out = append(out, p.Parallelism)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, nil), nil
}

// unseal reverses seal. A wrong password yields errBadPassword.
func unseal(sealed []byte, password string) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	if len(sealed) < sealHeaderSize+nonceSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(sealed))
	}
	p := sealParams{
		Memory:      binary.LittleEndian.Uint32(sealed[saltSize:]),
		Iterations:  binary.LittleEndian.Uint32(sealed[saltSize+4:]),
		Parallelism: sealed[saltSize+8],
	}
	nonce := sealed[sealHeaderSize : sealHeaderSize+nonceSize]
	key := sealKey([]byte(password), sealed[:saltSize], p)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, sealed[sealHeaderSize+nonceSize:], nil)
	if err != nil {
		return nil, errBadPassword
	}
	return plain, nil
}
