package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// XOnlyKeyLen is the length of a BIP-340 x-only public key.
const XOnlyKeyLen = 32

// KeyTag is the enum discriminant that precedes key material in a public
// key revealed by the wallet daemon.
type KeyTag byte

// TagSecp256k1Schnorr marks a secp256k1 key used with Schnorr signatures.
const TagSecp256k1Schnorr KeyTag = 0

// TaggedPublicKey is a decoded daemon public key.
type TaggedPublicKey struct {
	Tag KeyTag
	Key []byte // key material, tag stripped
}

// DecodeTaggedPublicKey hex-decodes a revealed public key and splits off
// byte 0 as the tag. Bytes 1..N are returned unchanged as key material.
func DecodeTaggedPublicKey(hexKey string) (TaggedPublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return TaggedPublicKey{}, fmt.Errorf("public key hex: %w", err)
	}
	key, err := StripKeyTag(raw)
	if err != nil {
		return TaggedPublicKey{}, err
	}
	return TaggedPublicKey{Tag: KeyTag(raw[0]), Key: key}, nil
}

// StripKeyTag drops the leading tag byte of a framed key.
func StripKeyTag(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, fmt.Errorf("framed public key too short: %d bytes", len(framed))
	}
	out := make([]byte, len(framed)-1)
	copy(out, framed[1:])
	return out, nil
}

// EncodeTaggedPublicKey frames key material with a tag and hex-encodes it.
func EncodeTaggedPublicKey(tag KeyTag, key []byte) string {
	framed := make([]byte, 0, len(key)+1)
	framed = append(framed, byte(tag))
	framed = append(framed, key...)
	return hex.EncodeToString(framed)
}

// ValidateKeyMaterial checks that key is a point on secp256k1: a 32-byte
// x-only key or a 33-byte compressed key.
func ValidateKeyMaterial(key []byte) error {
	switch len(key) {
	case XOnlyKeyLen:
		// Lift x to the point with even y.
		lifted := append([]byte{secp256k1.PubKeyFormatCompressedEven}, key...)
		if _, err := secp256k1.ParsePubKey(lifted); err != nil {
			return fmt.Errorf("x-only public key: %w", err)
		}
	case secp256k1.PubKeyBytesLenCompressed:
		if _, err := secp256k1.ParsePubKey(key); err != nil {
			return fmt.Errorf("compressed public key: %w", err)
		}
	default:
		return fmt.Errorf("unexpected public key length %d", len(key))
	}
	return nil
}

// KeyPair is a secp256k1 key pair. The fake daemon uses it to hand out
// addresses and revealable public keys.
type KeyPair struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*KeyPair, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeyPair{key: key}, nil
}

// KeyFromSeed derives a key pair deterministically from a 32-byte seed.
func KeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed must be 32 bytes, got %d", len(seed))
	}
	return &KeyPair{key: secp256k1.PrivKeyFromBytes(seed)}, nil
}

// XOnlyPublicKey returns the 32-byte BIP-340 public key.
func (k *KeyPair) XOnlyPublicKey() []byte {
	return k.key.PubKey().SerializeCompressed()[1:]
}

// CompressedPublicKey returns the 33-byte compressed public key.
func (k *KeyPair) CompressedPublicKey() []byte {
	return k.key.PubKey().SerializeCompressed()
}

// Zero clears the private scalar.
func (k *KeyPair) Zero() {
	k.key.Zero()
}
