package controller

import (
	"context"
	"encoding/json"

	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

// Send pays amount to address from the current account. When utxos is
// non-empty only those outputs are spent.
func (s *Session) Send(ctx context.Context, address string, amount Amount, utxos []types.UtxoOutpoint) (NewTransaction, error) {
	if utxos == nil {
		utxos = []types.UtxoOutpoint{}
	}
	var out NewTransaction
	err := s.call(ctx, "address_send", []any{s.acct(), address, amount, utxos, s.fee()}, &out)
	return out, err
}

// SendToAddress is Send reporting only the submission.
func (s *Session) SendToAddress(ctx context.Context, address string, amount Amount, utxos []types.UtxoOutpoint) (string, error) {
	if _, err := s.Send(ctx, address, amount, utxos); err != nil {
		return "", err
	}
	return TxSubmitted, nil
}

// DepositData stores hex-encoded data on chain.
func (s *Session) DepositData(ctx context.Context, hexData string) (NewTransaction, error) {
	var out NewTransaction
	err := s.call(ctx, "address_deposit_data", []any{s.acct(), hexData, s.fee()}, &out)
	return out, err
}

// GetTransaction returns the daemon's description of a wallet transaction.
func (s *Session) GetTransaction(ctx context.Context, txID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.call(ctx, "transaction_get", []any{s.acct(), txID}, &out)
	return out, err
}

// GetRawSignedTransaction returns a signed transaction as hex.
func (s *Session) GetRawSignedTransaction(ctx context.Context, txID string) (string, error) {
	var out string
	err := s.call(ctx, "transaction_get_signed_raw", []any{s.acct(), txID}, &out)
	return out, err
}

// ListPendingTransactions returns the ids of the account's unconfirmed
// transactions.
func (s *Session) ListPendingTransactions(ctx context.Context) ([]string, error) {
	var out []string
	err := s.call(ctx, "transaction_list_pending", []any{s.acct()}, &out)
	return out, err
}

// AbandonTransaction drops an unconfirmed transaction and releases its
// inputs.
func (s *Session) AbandonTransaction(ctx context.Context, txID string) (string, error) {
	if err := s.call(ctx, "transaction_abandon", []any{s.acct(), txID}, nil); err != nil {
		return "", err
	}
	return Success, nil
}
