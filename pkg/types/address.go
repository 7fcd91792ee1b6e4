package types

import (
	"fmt"
	"strings"
)

// ChainHRPs holds the bech32m prefixes a chain uses for the objects the
// wallet daemon hands out.
type ChainHRPs struct {
	Address    string
	Pool       string
	Delegation string
	Token      string
}

var chainHRPs = map[string]ChainHRPs{
	"mainnet": {Address: "mtc", Pool: "mpool", Delegation: "mdelg", Token: "mmltk"},
	"testnet": {Address: "tmt", Pool: "tpool", Delegation: "tdelg", Token: "tmltk"},
	"regtest": {Address: "rmt", Pool: "rpool", Delegation: "rdelg", Token: "rmltk"},
	"signet":  {Address: "smt", Pool: "spool", Delegation: "sdelg", Token: "smltk"},
}

// HRPsForChain returns the prefixes of a chain type.
func HRPsForChain(chain string) (ChainHRPs, error) {
	h, ok := chainHRPs[strings.ToLower(chain)]
	if !ok {
		return ChainHRPs{}, fmt.Errorf("unknown chain type %q", chain)
	}
	return h, nil
}

// ValidateAddress checks that s is a bech32m string with the given HRP and a
// non-empty payload. It returns the payload.
func ValidateAddress(s, hrp string) ([]byte, error) {
	return validateID(s, hrp, "address")
}

// ValidatePoolID checks a pool id against the chain's pool HRP.
func ValidatePoolID(s string, h ChainHRPs) error {
	_, err := validateID(s, h.Pool, "pool id")
	return err
}

// ValidateDelegationID checks a delegation id against the chain's delegation HRP.
func ValidateDelegationID(s string, h ChainHRPs) error {
	_, err := validateID(s, h.Delegation, "delegation id")
	return err
}

// ValidateTokenID checks a token id against the chain's token HRP.
func ValidateTokenID(s string, h ChainHRPs) error {
	_, err := validateID(s, h.Token, "token id")
	return err
}

func validateID(s, hrp, what string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty %s", what)
	}
	got, data, err := Bech32mDecode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	if got != strings.ToLower(hrp) {
		return nil, fmt.Errorf("%s %q has prefix %q, want %q", what, s, got, hrp)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s %q has an empty payload", what, s)
	}
	return data, nil
}
