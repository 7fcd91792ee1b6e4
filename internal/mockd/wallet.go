package mockd

import (
	"encoding/binary"
	"errors"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/wallet-controller/pkg/crypto"
	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

// UTXO states as the daemon names them.
const (
	StateConfirmed = "Confirmed"
	StateInMempool = "InMempool"
	StateInactive  = "Inactive"
)

// walletFile is the on-disk form of a wallet. Balances are not persisted;
// a reopened wallet starts from the initial funding again. An encrypted
// wallet keeps its mnemonic and seed only in Sealed.
type walletFile struct {
	Mnemonic  string        `json:"mnemonic,omitempty"`
	Seed      string        `json:"seed,omitempty"`
	Sealed    string        `json:"sealed,omitempty"`
	Accounts  []accountFile `json:"accounts"`
	Encrypted bool          `json:"encrypted"`
}

// walletSecrets is the plaintext of walletFile.Sealed.
type walletSecrets struct {
	Mnemonic string `json:"mnemonic,omitempty"`
	Seed     string `json:"seed"`
}

type accountFile struct {
	Name      string `json:"name"`
	NextIndex uint32 `json:"next_index"`
}

// wallet is an open wallet file.
type wallet struct {
	path      string
	hrp       string
	mnemonic  string
	seed      []byte
	encrypted bool
	locked    bool

	// password is held in memory while the keys are unlocked so the
	// secrets can be sealed again on save.
	password string
	sealed   []byte

	// pending address counts are derived once a locked wallet is unlocked.
	pending []uint32

	accounts []*account
	txs      map[string]*transaction
	txOrder  []string
}

type account struct {
	index     uint32
	name      string
	addresses []*address
	utxos     []*utxo
	tokens    map[string]*big.Int
	staking   bool
	blocks    []CreatedBlockResult
}

type address struct {
	addr  string
	index uint32
	key   *crypto.KeyPair
	used  bool
}

type utxo struct {
	txID    string
	index   uint32
	amount  *big.Int
	state   string
	locked  bool
	spentBy string
}

func (u *utxo) outpoint() string { return fmt.Sprintf("%s:%d", u.txID, u.index) }

// transaction is a wallet transaction. undo reverts its effects when it is
// abandoned.
type transaction struct {
	id      string
	account uint32
	kind    string
	state   string
	inputs  []*utxo
	outputs []*utxo
	raw     string
	undo    []func()
}

// newWallet builds a wallet from a mnemonic. An empty mnemonic generates one.
func newWallet(path, hrp, mnemonic string, storeSeed bool) (*wallet, error) {
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return nil, fmt.Errorf("generate entropy: %w", err)
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, fmt.Errorf("generate mnemonic: %w", err)
		}
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	w := &wallet{
		path: path,
		hrp:  hrp,
		seed: bip39.NewSeed(mnemonic, ""),
		txs:  make(map[string]*transaction),
	}
	if storeSeed {
		w.mnemonic = mnemonic
	}
	w.addAccount("")
	return w, nil
}

func loadWallet(path, hrp string) (*wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f walletFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wallet file %s: %w", path, err)
	}
	w := &wallet{
		path:      path,
		hrp:       hrp,
		mnemonic:  f.Mnemonic,
		encrypted: f.Encrypted,
		locked:    f.Encrypted,
		txs:       make(map[string]*transaction),
	}
	if f.Encrypted {
		sealed, err := hex.DecodeString(f.Sealed)
		if err != nil {
			return nil, fmt.Errorf("wallet file %s: sealed: %w", path, err)
		}
		w.sealed = sealed
	} else {
		seed, err := hex.DecodeString(f.Seed)
		if err != nil {
			return nil, fmt.Errorf("wallet file %s: seed: %w", path, err)
		}
		w.seed = seed
	}
	for _, af := range f.Accounts {
		w.addAccount(af.Name)
		w.pending = append(w.pending, af.NextIndex)
	}
	if !w.encrypted {
		if err := w.restoreAddresses(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// restoreAddresses derives the addresses recorded in the wallet file.
func (w *wallet) restoreAddresses() error {
	for i, n := range w.pending {
		a := w.accounts[i]
		for uint32(len(a.addresses)) < n {
			if _, err := w.newAddress(a); err != nil {
				return err
			}
		}
	}
	w.pending = nil
	return nil
}

// encrypt seals the wallet secrets under password. The keys stay unlocked.
func (w *wallet) encrypt(password string) error {
	w.encrypted, w.locked, w.password = true, false, password
	return w.reseal()
}

func (w *wallet) reseal() error {
	data, err := json.Marshal(walletSecrets{Mnemonic: w.mnemonic, Seed: hex.EncodeToString(w.seed)})
	if err != nil {
		return err
	}
	sealed, err := seal(data, w.password, defaultSealParams)
	if err != nil {
		return err
	}
	w.sealed = sealed
	return nil
}

// unlock opens the sealed secrets. It returns errBadPassword on a mismatch.
func (w *wallet) unlock(password string) error {
	data, err := unseal(w.sealed, password)
	if err != nil {
		return err
	}
	var sec walletSecrets
	if err := json.Unmarshal(data, &sec); err != nil {
		return fmt.Errorf("decode wallet secrets: %w", err)
	}
	seed, err := hex.DecodeString(sec.Seed)
	if err != nil {
		return fmt.Errorf("decode wallet seed: %w", err)
	}
	w.seed, w.mnemonic, w.password, w.locked = seed, sec.Mnemonic, password, false
	return w.restoreAddresses()
}

// lock forgets the password. Derived keys stay in memory but signing is
// refused while locked.
func (w *wallet) lock() {
	w.locked, w.password = true, ""
}

// decrypt drops the encryption of an unlocked wallet.
func (w *wallet) decrypt() {
	w.encrypted, w.password, w.sealed = false, "", nil
}

func (w *wallet) save() error {
	f := walletFile{Encrypted: w.encrypted}
	if w.encrypted {
		if w.password != "" {
			if err := w.reseal(); err != nil {
				return err
			}
		}
		f.Sealed = hex.EncodeToString(w.sealed)
	} else {
		f.Mnemonic = w.mnemonic
		f.Seed = hex.EncodeToString(w.seed)
	}
	for i, a := range w.accounts {
		next := uint32(len(a.addresses))
		if i < len(w.pending) && w.pending[i] > next {
			next = w.pending[i]
		}
		f.Accounts = append(f.Accounts, accountFile{Name: a.name, NextIndex: next})
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0o600)
}

func (w *wallet) addAccount(name string) *account {
	a := &account{
		index:  uint32(len(w.accounts)),
		name:   name,
		tokens: make(map[string]*big.Int),
	}
	w.accounts = append(w.accounts, a)
	return a
}

func (w *wallet) account(idx uint32) (*account, bool) {
	if int(idx) >= len(w.accounts) {
		return nil, false
	}
	return w.accounts[idx], true
}

// deriveKey derives the key of address index idx of account acct.
func (w *wallet) deriveKey(acct, idx uint32) (*crypto.KeyPair, error) {
	var path [8]byte
	binary.BigEndian.PutUint32(path[:4], acct)
	binary.BigEndian.PutUint32(path[4:], idx)
	h := crypto.HashConcat(w.seed, path[:])
	return crypto.KeyFromSeed(h[:])
}

func (w *wallet) newAddress(a *account) (*address, error) {
	if w.seed == nil {
		return nil, errors.New("wallet is locked")
	}
	idx := uint32(len(a.addresses))
	key, err := w.deriveKey(a.index, idx)
	if err != nil {
		return nil, err
	}
	s, err := addressString(w.hrp, key)
	if err != nil {
		return nil, err
	}
	addr := &address{addr: s, index: idx, key: key}
	a.addresses = append(a.addresses, addr)
	return addr, nil
}

// ownerOf finds the account holding a wallet address.
func (w *wallet) ownerOf(addr string) *account {
	for _, a := range w.accounts {
		for _, ad := range a.addresses {
			if ad.addr == addr {
				return a
			}
		}
	}
	return nil
}

func (a *account) findAddress(addr string) *address {
	for _, ad := range a.addresses {
		if ad.addr == addr {
			return ad
		}
	}
	return nil
}

// spendable returns the unspent UTXOs that pass the filters. An empty states
// list matches every state.
func (a *account) spendable(withLocked string, states []string) []*utxo {
	var out []*utxo
	for _, u := range a.utxos {
		if u.spentBy != "" {
			continue
		}
		switch withLocked {
		case "Unlocked":
			if u.locked {
				continue
			}
		case "Locked":
			if !u.locked {
				continue
			}
		}
		if len(states) > 0 && !containsFold(states, u.state) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (a *account) balance(withLocked string, states []string) *big.Int {
	sum := new(big.Int)
	for _, u := range a.spendable(withLocked, states) {
		sum.Add(sum, u.amount)
	}
	return sum
}

func (a *account) tokenBalance(id string) *big.Int {
	b, ok := a.tokens[id]
	if !ok {
		b = new(big.Int)
		a.tokens[id] = b
	}
	return b
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// addressString encodes a key's x-only public key as a bech32m address.
func addressString(hrp string, key *crypto.KeyPair) (string, error) {
	h := crypto.Hash(key.XOnlyPublicKey())
	return types.Bech32mEncode(hrp, h[:20])
}
