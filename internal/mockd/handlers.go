package mockd

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strings"
)

// dispatch routes a request to the appropriate handler. Handlers run with
// the state lock held.
func (s *Server) dispatch(req *Request) (any, *Error) {
	p, perr := parseParams(req)
	if perr != nil {
		return nil, perr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Method {
	case "shutdown":
		return nil, nil
	case "wallet_create":
		return s.handleWalletCreate(p)
	case "wallet_open":
		return s.handleWalletOpen(p)
	case "wallet_close":
		return s.handleWalletClose(p)
	case "wallet_sync", "wallet_rescan":
		_, err := s.openWallet()
		return nil, err
	case "wallet_best_block":
		return s.chain.bestBlock(), nil
	case "wallet_show_seed_phrase":
		return s.handleShowSeedPhrase(p, false)
	case "wallet_purge_seed_phrase":
		return s.handleShowSeedPhrase(p, true)
	case "wallet_encrypt_private_keys":
		return s.handleEncryptPrivateKeys(p)
	case "wallet_unlock_private_keys":
		return s.handleUnlockPrivateKeys(p)
	case "wallet_lock_private_keys":
		return s.handleLockPrivateKeys(p)
	case "wallet_disable_private_keys_encryption":
		return s.handleDisableEncryption(p)
	case "account_create":
		return s.handleAccountCreate(p)
	case "account_balance":
		return s.handleAccountBalance(p)
	case "account_utxos":
		return s.handleAccountUtxos(p)
	case "address_new":
		return s.handleAddressNew(p)
	case "address_reveal_public_key":
		return s.handleRevealPublicKey(p)
	case "address_show":
		return s.handleAddressShow(p)
	case "address_send":
		return s.handleAddressSend(p)
	case "address_deposit_data":
		return s.handleDepositData(p)
	case "transaction_get":
		return s.handleTransactionGet(p)
	case "transaction_get_signed_raw":
		return s.handleTransactionGetSignedRaw(p)
	case "transaction_list_pending":
		return s.handleTransactionListPending(p)
	case "transaction_abandon":
		return s.handleTransactionAbandon(p)
	case "token_issue_new":
		return s.handleTokenIssueNew(p)
	case "token_nft_issue_new":
		return s.handleNftIssueNew(p)
	case "token_mint":
		return s.handleTokenMint(p)
	case "token_unmint":
		return s.handleTokenUnmint(p)
	case "token_lock_supply":
		return s.handleTokenLockSupply(p)
	case "token_freeze":
		return s.handleTokenFreeze(p)
	case "token_unfreeze":
		return s.handleTokenUnfreeze(p)
	case "token_change_authority":
		return s.handleTokenChangeAuthority(p)
	case "token_send":
		return s.handleTokenSend(p)
	case "staking_create_pool":
		return s.handleCreatePool(p)
	case "staking_decommission_pool":
		return s.handleDecommissionPool(p)
	case "staking_list_pool_ids":
		return s.handleListPoolIDs(p)
	case "staking_list_created_block_ids":
		return s.handleListCreatedBlockIDs(p)
	case "staking_start":
		return s.handleStakingStart(p)
	case "staking_stop":
		return s.handleStakingStop(p)
	case "staking_status":
		return s.handleStakingStatus(p)
	case "delegation_create":
		return s.handleDelegationCreate(p)
	case "delegation_stake":
		return s.handleDelegationStake(p)
	case "delegation_withdraw":
		return s.handleDelegationWithdraw(p)
	case "delegation_list_ids":
		return s.handleDelegationListIDs(p)
	case "mock_produce_block":
		return s.handleProduceBlock(p)
	case "mock_fund":
		return s.handleFund(p)
	case "mock_fault":
		return s.handleFault(p)
	case "mock_clear_faults":
		s.faults.clear()
		return nil, nil
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func (s *Server) openWallet() (*wallet, *Error) {
	if s.wallet == nil {
		return nil, walletErr("Wallet file not opened")
	}
	return s.wallet, nil
}

// account resolves the {"account": N} parameter against the open wallet.
func (s *Server) account(p params) (*wallet, *account, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, nil, err
	}
	idx, err := p.accountArg()
	if err != nil {
		return nil, nil, err
	}
	a, ok := w.account(idx)
	if !ok {
		return nil, nil, walletErr("Account %d not found", idx)
	}
	return w, a, nil
}

// signer is account for operations that need private keys.
func (s *Server) signer(p params) (*wallet, *account, *Error) {
	w, a, err := s.account(p)
	if err != nil {
		return nil, nil, err
	}
	if w.encrypted && w.locked {
		return nil, nil, walletErr("Wallet is locked")
	}
	return w, a, nil
}

func unlockErr(err error) *Error {
	if errors.Is(err, errBadPassword) {
		return walletErr("Invalid password")
	}
	return &Error{Code: CodeInternalError, Message: fmt.Sprintf("unlock wallet: %v", err)}
}

func saveErr(err error) *Error {
	return &Error{Code: CodeInternalError, Message: fmt.Sprintf("save wallet: %v", err)}
}

func (s *Server) fundInitial(w *wallet) {
	if s.initial.Sign() == 0 {
		return
	}
	id := s.chain.nextID("genesis")
	w.accounts[0].utxos = append(w.accounts[0].utxos, &utxo{
		txID:   id.String(),
		amount: new(big.Int).Set(s.initial),
		state:  StateConfirmed,
	})
}

func (s *Server) handleWalletCreate(p params) (any, *Error) {
	if s.wallet != nil {
		return nil, walletErr("Wallet is already opened: %s", s.wallet.path)
	}
	path, err := p.str(0, "wallet path")
	if err != nil {
		return nil, err
	}
	var storeSeed bool
	if err := p.require(1, "store seed phrase flag", &storeSeed); err != nil {
		return nil, err
	}
	var mnemonic string
	if _, err := p.decode(2, &mnemonic); err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return nil, walletErr("File already exists: %s", path)
	}
	w, werr := newWallet(path, s.hrps.Address, mnemonic, storeSeed)
	if werr != nil {
		return nil, walletErr("Cannot create wallet: %v", werr)
	}
	if werr := w.save(); werr != nil {
		return nil, saveErr(werr)
	}
	s.fundInitial(w)
	s.wallet = w
	s.logger.Info().Str("path", path).Bool("recovered", mnemonic != "").Msg("Wallet created")
	return nil, nil
}

func (s *Server) handleWalletOpen(p params) (any, *Error) {
	if s.wallet != nil {
		return nil, walletErr("Wallet is already opened: %s", s.wallet.path)
	}
	path, err := p.str(0, "wallet path")
	if err != nil {
		return nil, err
	}
	var password string
	if _, err := p.decode(1, &password); err != nil {
		return nil, err
	}

	w, lerr := loadWallet(path, s.hrps.Address)
	if errors.Is(lerr, fs.ErrNotExist) {
		return nil, walletErr("Cannot open wallet: file not found: %s", path)
	}
	if lerr != nil {
		return nil, walletErr("Cannot open wallet: %v", lerr)
	}
	if password != "" {
		if !w.encrypted {
			return nil, walletErr("Invalid password")
		}
		if uerr := w.unlock(password); uerr != nil {
			return nil, unlockErr(uerr)
		}
	}
	s.fundInitial(w)
	s.wallet = w
	s.logger.Info().Str("path", path).Msg("Wallet opened")
	return nil, nil
}

func (s *Server) handleWalletClose(_ params) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	if err := w.save(); err != nil {
		return nil, saveErr(err)
	}
	s.wallet = nil
	s.logger.Info().Str("path", w.path).Msg("Wallet closed")
	return nil, nil
}

func (s *Server) handleShowSeedPhrase(_ params, purge bool) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	if w.encrypted && w.locked {
		return nil, walletErr("Wallet is locked")
	}
	if w.mnemonic == "" {
		return nil, nil
	}
	res := SeedPhraseResult{SeedPhrase: strings.Fields(w.mnemonic)}
	if purge {
		w.mnemonic = ""
		if err := w.save(); err != nil {
			return nil, saveErr(err)
		}
	}
	return res, nil
}

func (s *Server) handleEncryptPrivateKeys(p params) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	pw, err := p.str(0, "password")
	if err != nil {
		return nil, err
	}
	if pw == "" {
		return nil, invalidParams("empty password")
	}
	if w.encrypted {
		return nil, walletErr("Wallet is already encrypted")
	}
	if err := w.encrypt(pw); err != nil {
		return nil, saveErr(err)
	}
	if err := w.save(); err != nil {
		return nil, saveErr(err)
	}
	return nil, nil
}

func (s *Server) handleUnlockPrivateKeys(p params) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	pw, err := p.str(0, "password")
	if err != nil {
		return nil, err
	}
	if !w.encrypted {
		return nil, walletErr("Wallet is not encrypted")
	}
	if uerr := w.unlock(pw); uerr != nil {
		return nil, unlockErr(uerr)
	}
	return nil, nil
}

func (s *Server) handleLockPrivateKeys(_ params) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	if !w.encrypted {
		return nil, walletErr("Wallet is not encrypted")
	}
	w.lock()
	return nil, nil
}

func (s *Server) handleDisableEncryption(_ params) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	if !w.encrypted {
		return nil, walletErr("Wallet is not encrypted")
	}
	if w.locked {
		return nil, walletErr("Wallet is locked")
	}
	w.decrypt()
	if err := w.save(); err != nil {
		return nil, saveErr(err)
	}
	return nil, nil
}

func (s *Server) handleAccountCreate(p params) (any, *Error) {
	w, err := s.openWallet()
	if err != nil {
		return nil, err
	}
	var name *string
	if _, err := p.decode(0, &name); err != nil {
		return nil, err
	}
	n := ""
	if name != nil {
		n = *name
	}
	a := w.addAccount(n)
	if err := w.save(); err != nil {
		return nil, saveErr(err)
	}
	return struct {
		Account uint32  `json:"account"`
		Name    *string `json:"name"`
	}{a.index, name}, nil
}
