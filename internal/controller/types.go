package controller

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Acknowledgements returned by operations whose daemon reply carries no
// information.
const (
	Success        = "Success"
	TxSubmitted    = "The transaction was submitted successfully"
	StakingStarted = "Staking started successfully"
)

// Amount is a decimal coin or token amount. It is sent as a JSON string and
// decoded from a string, a number, or an object carrying a "decimal" field.
type Amount string

// AmountFromInt returns the amount of n whole units.
func AmountFromInt(n int64) Amount {
	return Amount(strconv.FormatInt(n, 10))
}

// ParseAmount checks that s is a non-negative decimal number.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasDot := strings.Cut(s, ".")
	if s == "" || (whole == "" && frac == "") || (hasDot && frac == "") {
		return "", fmt.Errorf("invalid amount %q", s)
	}
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("invalid amount %q", s)
		}
	}
	return Amount(s), nil
}

func (a Amount) String() string { return string(a) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Amount(n.String())
		return nil
	}
	var obj struct {
		Decimal *string `json:"decimal"`
		Atoms   *string `json:"atoms"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	switch {
	case obj.Decimal != nil:
		*a = Amount(*obj.Decimal)
	case obj.Atoms != nil:
		*a = Amount(*obj.Atoms)
	default:
		return fmt.Errorf("amount: no decimal or atoms field in %s", data)
	}
	return nil
}

// Height is a block height. The daemon reports it as a number or a string.
type Height uint64

// UnmarshalJSON implements json.Unmarshaler.
func (h *Height) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}
	*h = Height(n)
	return nil
}

func (h Height) String() string { return strconv.FormatUint(uint64(h), 10) }

// BlockInfo identifies a block.
type BlockInfo struct {
	ID     string `json:"id"`
	Height Height `json:"height"`
}

// CreatedBlockInfo is a block produced by one of the account's pools.
type CreatedBlockInfo struct {
	BlockID     string `json:"id"`
	BlockHeight Height `json:"height"`
}

// PoolData describes a staking pool owned by the account.
type PoolData struct {
	PoolID  string `json:"pool_id"`
	Balance Amount `json:"balance"`
}

// DelegationData describes a delegation owned by the account.
type DelegationData struct {
	DelegationID string `json:"delegation_id"`
	Balance      Amount `json:"balance"`
}

// NewTransaction is the daemon's reply to a transaction-producing call.
type NewTransaction struct {
	TxID string `json:"tx_id"`
}

// NewTokenInfo is the daemon's reply to a token or NFT issuance.
type NewTokenInfo struct {
	TokenID string `json:"token_id"`
	TxID    string `json:"tx_id"`
}

// NewAccountInfo is the daemon's reply to account creation.
type NewAccountInfo struct {
	Account uint32  `json:"account"`
	Name    *string `json:"name"`
}

// Balances holds an account's coin and token balances.
type Balances struct {
	Coins  Amount            `json:"coins"`
	Tokens map[string]Amount `json:"tokens"`
}

// SeedPhrase is a stored wallet mnemonic.
type SeedPhrase struct {
	Words      []string `json:"seed_phrase"`
	Passphrase *string  `json:"passphrase"`
}

// WithLocked filters outputs by lock state. It is capitalised on the wire.
type WithLocked string

const (
	Unlocked  WithLocked = "unlocked"
	Locked    WithLocked = "locked"
	AnyLocked WithLocked = "any"
)

// wire returns the form the daemon expects: Unlocked, Locked or Any.
func (w WithLocked) wire() string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(string(w[:1])) + strings.ToLower(string(w[1:]))
}

// UtxoState names a UTXO state filter.
type UtxoState string

const (
	StateConfirmed  UtxoState = "Confirmed"
	StateInMempool  UtxoState = "InMempool"
	StateInactive   UtxoState = "Inactive"
	StateConflicted UtxoState = "Conflicted"
	StateAbandoned  UtxoState = "Abandoned"
)

// DefaultUtxoStates is used when a balance query names no states.
var DefaultUtxoStates = []UtxoState{StateConfirmed}

// TokenSupply is the supply policy of a fungible token, passed through as
// an opaque string.
type TokenSupply string

const (
	SupplyUnlimited TokenSupply = "unlimited"
	SupplyLockable  TokenSupply = "lockable"
)

// FixedSupply caps a token's supply at amount.
func FixedSupply(amount Amount) TokenSupply {
	return TokenSupply("fixed:" + string(amount))
}

// IsFreezable says whether a token can be frozen.
type IsFreezable string

const (
	Freezable    IsFreezable = "freezable"
	NotFreezable IsFreezable = "not_freezable"
)

// IsUnfreezable says whether a frozen token can be unfrozen again.
type IsUnfreezable string

const (
	Unfreezable    IsUnfreezable = "unfreezable"
	NotUnfreezable IsUnfreezable = "not_unfreezable"
)

// TokenIssuance describes a new fungible token.
type TokenIssuance struct {
	Ticker      string
	Decimals    int
	MetadataURI string
	Destination string
	Supply      TokenSupply
	Freezable   IsFreezable
}

// NftMetadata is sent as one object. Optional fields are sent as empty
// strings, never omitted.
type NftMetadata struct {
	MediaHash             string `json:"media_hash"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	Ticker                string `json:"ticker"`
	Creator               string `json:"creator"`
	IconURI               string `json:"icon_uri"`
	MediaURI              string `json:"media_uri"`
	AdditionalMetadataURI string `json:"additional_metadata_uri"`
}

// StakingStatus is the staking state of an account.
type StakingStatus int

const (
	NotStaking StakingStatus = iota
	Staking
)

func (s StakingStatus) String() string {
	if s == Staking {
		return "Staking"
	}
	return "Not staking"
}

// feePolicy is attached to every fee-paying call.
type feePolicy struct {
	InTopXMB int `json:"in_top_x_mb"`
}
