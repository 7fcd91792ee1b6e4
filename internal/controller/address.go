package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Klingon-tech/wallet-controller/pkg/crypto"
	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

// NewAddress derives the next receiving address of the current account.
func (s *Session) NewAddress(ctx context.Context) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := s.call(ctx, "address_new", []any{s.acct()}, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

// RevealPublicKey returns the hex-encoded public key behind address. The
// first decoded byte is the key type tag.
func (s *Session) RevealPublicKey(ctx context.Context, address string) (string, error) {
	var out struct {
		PublicKeyHex string `json:"public_key_hex"`
	}
	if err := s.call(ctx, "address_reveal_public_key", []any{s.acct(), address}, &out); err != nil {
		return "", err
	}
	return out.PublicKeyHex, nil
}

// NewPublicKey derives a new address and returns the key material of its
// public key, with the type tag stripped.
func (s *Session) NewPublicKey(ctx context.Context) ([]byte, error) {
	addr, err := s.NewAddress(ctx)
	if err != nil {
		return nil, err
	}
	keyHex, err := s.RevealPublicKey(ctx, addr)
	if err != nil {
		return nil, err
	}
	pk, err := crypto.DecodeTaggedPublicKey(keyHex)
	if err != nil {
		return nil, fmt.Errorf("public key of %s: %w", addr, err)
	}
	if pk.Tag == crypto.TagSecp256k1Schnorr {
		if err := crypto.ValidateKeyMaterial(pk.Key); err != nil {
			return nil, fmt.Errorf("public key of %s: %w", addr, err)
		}
	}
	return pk.Key, nil
}

// AddressesUsage returns the daemon's address listing for the current
// account as raw JSON.
func (s *Session) AddressesUsage(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.call(ctx, "address_show", []any{s.acct()}, &out)
	return out, err
}

// ListUtxos lists the current account's outputs. Empty utxoTypes and
// withLocked leave the daemon defaults in place. States are joined with ",".
func (s *Session) ListUtxos(ctx context.Context, utxoTypes string, withLocked WithLocked, states []UtxoState) ([]types.UtxoOutpoint, error) {
	var out []struct {
		Outpoint types.UtxoOutpoint `json:"outpoint"`
	}
	params := []any{s.acct(), utxoTypes, withLocked.wire(), joinStates(states)}
	if err := s.call(ctx, "account_utxos", params, &out); err != nil {
		return nil, err
	}
	ops := make([]types.UtxoOutpoint, 0, len(out))
	for _, u := range out {
		ops = append(ops, u.Outpoint)
	}
	return ops, nil
}

// Balances returns the current account's coin and token balances.
func (s *Session) Balances(ctx context.Context, withLocked WithLocked, states []UtxoState) (Balances, error) {
	if withLocked == "" {
		withLocked = Unlocked
	}
	if len(states) == 0 {
		states = DefaultUtxoStates
	}
	var out Balances
	err := s.call(ctx, "account_balance", []any{s.acct(), withLocked.wire(), states}, &out)
	return out, err
}

// GetBalance returns the coin balance formatted as "Coins amount: <value>".
func (s *Session) GetBalance(ctx context.Context, withLocked WithLocked, states []UtxoState) (string, error) {
	b, err := s.Balances(ctx, withLocked, states)
	if err != nil {
		return "", err
	}
	return "Coins amount: " + b.Coins.String(), nil
}

func joinStates(states []UtxoState) string {
	parts := make([]string, len(states))
	for i, st := range states {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}
