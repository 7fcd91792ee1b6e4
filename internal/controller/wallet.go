package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// DefaultWalletName is the wallet file name used when none is given.
const DefaultWalletName = "wallet"

func (s *Session) walletPath(name string) string {
	if name == "" {
		name = DefaultWalletName
	}
	return s.cfg.WalletFile(name)
}

// CreateWallet creates a wallet file in the node data directory and opens
// it. The seed phrase is stored in the wallet.
func (s *Session) CreateWallet(ctx context.Context, name string) (string, error) {
	if err := s.call(ctx, "wallet_create", []any{s.walletPath(name), true}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// RecoverWallet creates a wallet from an existing mnemonic.
func (s *Session) RecoverWallet(ctx context.Context, name, mnemonic string) (string, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("recover wallet: invalid mnemonic")
	}
	if err := s.call(ctx, "wallet_create", []any{s.walletPath(name), true, mnemonic}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// OpenWallet opens an existing wallet file from the node data directory.
func (s *Session) OpenWallet(ctx context.Context, name string) (string, error) {
	if err := s.call(ctx, "wallet_open", []any{s.walletPath(name), nil}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// CloseWallet closes the open wallet.
func (s *Session) CloseWallet(ctx context.Context) (string, error) {
	if err := s.call(ctx, "wallet_close", nil, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// Sync asks the daemon to synchronise with the node. It does not wait for
// the sync to finish; poll BestBlockHeight for that.
func (s *Session) Sync(ctx context.Context) (string, error) {
	if err := s.call(ctx, "wallet_sync", nil, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// Rescan asks the daemon to rescan the chain for the wallet's outputs.
func (s *Session) Rescan(ctx context.Context) (string, error) {
	if err := s.call(ctx, "wallet_rescan", nil, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// BestBlock returns the wallet's view of the chain tip.
func (s *Session) BestBlock(ctx context.Context) (BlockInfo, error) {
	var out BlockInfo
	err := s.call(ctx, "wallet_best_block", []any{struct{}{}}, &out)
	return out, err
}

// BestBlockHeight returns the tip height as a decimal string.
func (s *Session) BestBlockHeight(ctx context.Context) (string, error) {
	b, err := s.BestBlock(ctx)
	if err != nil {
		return "", err
	}
	return b.Height.String(), nil
}

// CreateNewAccount adds an account to the wallet. A nil name creates an
// unnamed account.
func (s *Session) CreateNewAccount(ctx context.Context, name *string) (NewAccountInfo, error) {
	var out NewAccountInfo
	err := s.call(ctx, "account_create", []any{name, struct{}{}}, &out)
	return out, err
}

// ShowSeedPhrase returns the stored mnemonic, or nil when the wallet keeps
// none.
func (s *Session) ShowSeedPhrase(ctx context.Context) (*SeedPhrase, error) {
	var out *SeedPhrase
	err := s.call(ctx, "wallet_show_seed_phrase", nil, &out)
	return out, err
}

// PurgeSeedPhrase deletes the stored mnemonic and returns it.
func (s *Session) PurgeSeedPhrase(ctx context.Context) (*SeedPhrase, error) {
	var out *SeedPhrase
	err := s.call(ctx, "wallet_purge_seed_phrase", nil, &out)
	return out, err
}

// EncryptPrivateKeys encrypts the wallet's keys with password.
func (s *Session) EncryptPrivateKeys(ctx context.Context, password string) (string, error) {
	if err := s.call(ctx, "wallet_encrypt_private_keys", []any{password}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// UnlockPrivateKeys unlocks encrypted keys for signing.
func (s *Session) UnlockPrivateKeys(ctx context.Context, password string) (string, error) {
	if err := s.call(ctx, "wallet_unlock_private_keys", []any{password}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// LockPrivateKeys locks encrypted keys again.
func (s *Session) LockPrivateKeys(ctx context.Context) (string, error) {
	if err := s.call(ctx, "wallet_lock_private_keys", nil, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// RemovePrivateKeyEncryption stores the keys unencrypted.
func (s *Session) RemovePrivateKeyEncryption(ctx context.Context) (string, error) {
	if err := s.call(ctx, "wallet_disable_private_keys_encryption", nil, nil); err != nil {
		return "", err
	}
	return Success, nil
}
