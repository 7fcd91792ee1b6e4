package mockd

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeWallet is used for wallet-level failures, as the daemon does.
	CodeWallet = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// emitted.
type Response struct {
	JSONRPC string
	Result  any
	Error   *Error
	ID      json.RawMessage
}

// MarshalJSON writes "result" (even when null) or "error", never both.
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			Error   *Error          `json:"error"`
			ID      json.RawMessage `json:"id"`
		}{r.JSONRPC, r.Error, id})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  any             `json:"result"`
		ID      json.RawMessage `json:"id"`
	}{r.JSONRPC, r.Result, id})
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func invalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func walletErr(format string, args ...any) *Error {
	return &Error{Code: CodeWallet, Message: fmt.Sprintf(format, args...)}
}

// ── Result types ────────────────────────────────────────────────────────

// BlockInfo is the result of wallet_best_block.
type BlockInfo struct {
	ID     string `json:"id"`
	Height uint64 `json:"height"`
}

// AmountResult carries an amount as atoms and as a decimal string.
type AmountResult struct {
	Atoms   string `json:"atoms"`
	Decimal string `json:"decimal"`
}

// BalanceResult is the result of account_balance.
type BalanceResult struct {
	Coins  AmountResult            `json:"coins"`
	Tokens map[string]AmountResult `json:"tokens"`
}

// NewTxResult is the result of every transaction-producing call.
type NewTxResult struct {
	TxID string `json:"tx_id"`
}

// NewTokenResult is the result of token and NFT issuance.
type NewTokenResult struct {
	TokenID string `json:"token_id"`
	TxID    string `json:"tx_id"`
}

// NewDelegationResult is the result of delegation_create.
type NewDelegationResult struct {
	DelegationID string `json:"delegation_id"`
	TxID         string `json:"tx_id"`
}

// OutpointResult is an outpoint as listed by account_utxos. The index is
// rendered as a string.
type OutpointResult struct {
	ID    string `json:"id"`
	Index string `json:"index"`
}

// UtxoResult is one entry of account_utxos.
type UtxoResult struct {
	Outpoint OutpointResult `json:"outpoint"`
	Output   UtxoOutput     `json:"output"`
}

// UtxoOutput describes the value held by a UTXO.
type UtxoOutput struct {
	Type   string       `json:"type"`
	Value  AmountResult `json:"value"`
	State  string       `json:"state"`
	Locked bool         `json:"locked"`
}

// PoolResult is one entry of staking_list_pool_ids.
type PoolResult struct {
	PoolID  string `json:"pool_id"`
	Pledge  string `json:"pledge"`
	Balance string `json:"balance"`
}

// DelegationResult is one entry of delegation_list_ids.
type DelegationResult struct {
	DelegationID string `json:"delegation_id"`
	PoolID       string `json:"pool_id"`
	Balance      string `json:"balance"`
}

// CreatedBlockResult is one entry of staking_list_created_block_ids.
type CreatedBlockResult struct {
	ID     string `json:"id"`
	Height string `json:"height"`
}

// AddressInfo is one entry of address_show.
type AddressInfo struct {
	Address string `json:"address"`
	Index   string `json:"index"`
	Used    bool   `json:"used"`
}

// SeedPhraseResult is the result of the seed phrase calls.
type SeedPhraseResult struct {
	SeedPhrase []string `json:"seed_phrase"`
	Passphrase *string  `json:"passphrase"`
}
