package mockd

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"github.com/Klingon-tech/wallet-controller/pkg/crypto"
	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

var knownStates = []string{StateConfirmed, StateInMempool, StateInactive, "Conflicted", "Abandoned"}

func parseWithLocked(s string) (string, *Error) {
	switch s {
	case "", "Unlocked":
		return "Unlocked", nil
	case "Locked", "Any":
		return s, nil
	}
	return "", invalidParams("unknown variant %q, expected one of Unlocked, Locked, Any", s)
}

func checkStates(states []string) *Error {
	for _, st := range states {
		if !containsFold(knownStates, st) {
			return invalidParams("unknown utxo state %q", st)
		}
	}
	return nil
}

func (s *Server) handleAccountBalance(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	var locked string
	if _, err := p.decode(1, &locked); err != nil {
		return nil, err
	}
	withLocked, err := parseWithLocked(locked)
	if err != nil {
		return nil, err
	}
	states := []string{StateConfirmed}
	if _, err := p.decode(2, &states); err != nil {
		return nil, err
	}
	if err := checkStates(states); err != nil {
		return nil, err
	}

	res := BalanceResult{
		Coins:  amountResult(a.balance(withLocked, states), CoinDecimals),
		Tokens: make(map[string]AmountResult),
	}
	for id, v := range a.tokens {
		if v.Sign() == 0 {
			continue
		}
		decimals := 0
		if t, ok := s.chain.tokens[id]; ok {
			decimals = t.decimals
		}
		res.Tokens[id] = amountResult(v, decimals)
	}
	return res, nil
}

func (s *Server) handleAccountUtxos(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	var utxoTypes, locked, stateList string
	for i, dst := range []*string{&utxoTypes, &locked, &stateList} {
		if _, err := p.decode(i+1, dst); err != nil {
			return nil, err
		}
	}
	withLocked, err := parseWithLocked(locked)
	if err != nil {
		return nil, err
	}
	var states []string
	for _, st := range strings.Split(stateList, ",") {
		if st = strings.TrimSpace(st); st != "" {
			states = append(states, st)
		}
	}
	if err := checkStates(states); err != nil {
		return nil, err
	}
	if utxoTypes != "" && !strings.EqualFold(utxoTypes, "Transfer") && !strings.EqualFold(utxoTypes, "all") {
		// Only transfer outputs are modelled.
		return []UtxoResult{}, nil
	}

	out := []UtxoResult{}
	for _, u := range a.spendable(withLocked, states) {
		out = append(out, UtxoResult{
			Outpoint: OutpointResult{ID: u.txID, Index: strconv.FormatUint(uint64(u.index), 10)},
			Output: UtxoOutput{
				Type:   "Transfer",
				Value:  amountResult(u.amount, CoinDecimals),
				State:  u.state,
				Locked: u.locked,
			},
		})
	}
	return out, nil
}

func (s *Server) handleAddressNew(p params) (any, *Error) {
	w, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	if w.seed == nil {
		return nil, walletErr("Wallet is locked")
	}
	addr, aerr := w.newAddress(a)
	if aerr != nil {
		return nil, &Error{Code: CodeInternalError, Message: aerr.Error()}
	}
	if err := w.save(); err != nil {
		return nil, saveErr(err)
	}
	return struct {
		Address string `json:"address"`
		Index   string `json:"index"`
	}{addr.addr, strconv.FormatUint(uint64(addr.index), 10)}, nil
}

func (s *Server) handleRevealPublicKey(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	addrStr, err := p.str(1, "address")
	if err != nil {
		return nil, err
	}
	addr := a.findAddress(addrStr)
	if addr == nil {
		return nil, walletErr("Address %s not found in account %d", addrStr, a.index)
	}
	return struct {
		PublicKeyHex     string `json:"public_key_hex"`
		PublicKeyAddress string `json:"public_key_address"`
	}{crypto.EncodeTaggedPublicKey(crypto.TagSecp256k1Schnorr, addr.key.XOnlyPublicKey()), addr.addr}, nil
}

func (s *Server) handleAddressShow(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	out := []AddressInfo{}
	for _, ad := range a.addresses {
		out = append(out, AddressInfo{
			Address: ad.addr,
			Index:   strconv.FormatUint(uint64(ad.index), 10),
			Used:    ad.used,
		})
	}
	return out, nil
}

// spend builds a transaction paying amount out of a's coins. Selected
// outpoints are used as inputs when given; otherwise UTXOs are picked in
// order. Change goes back to the account.
func (s *Server) spend(w *wallet, a *account, amount *big.Int, selected []types.UtxoOutpoint, kind string) (*transaction, *Error) {
	var inputs []*utxo
	if len(selected) > 0 {
		for _, op := range selected {
			u := a.findUnspent(op.ID, op.Index)
			if u == nil {
				return nil, walletErr("UTXO %s not found or already spent", op)
			}
			inputs = append(inputs, u)
		}
	} else {
		total := new(big.Int)
		for _, u := range a.spendable("Unlocked", []string{StateConfirmed, StateInMempool}) {
			if total.Cmp(amount) >= 0 {
				break
			}
			inputs = append(inputs, u)
			total.Add(total, u.amount)
		}
	}

	sum := new(big.Int)
	for _, u := range inputs {
		sum.Add(sum, u.amount)
	}
	if sum.Cmp(amount) < 0 {
		return nil, walletErr("Not enough funds: have %s, need %s",
			formatAmount(sum, CoinDecimals), formatAmount(amount, CoinDecimals))
	}

	id := s.chain.nextID("tx").String()
	tx := &transaction{
		id:      id,
		account: a.index,
		kind:    kind,
		state:   StateInMempool,
		inputs:  inputs,
	}
	for _, u := range inputs {
		u.spentBy = id
	}
	if change := new(big.Int).Sub(sum, amount); change.Sign() > 0 {
		tx.outputs = append(tx.outputs, a.addUtxo(id, 1, change, StateInMempool))
	}
	raw := append([]byte(kind), amount.Bytes()...)
	h := crypto.HashConcat([]byte(id), raw)
	tx.raw = hex.EncodeToString(append(h[:], raw...))

	w.txs[id] = tx
	w.txOrder = append(w.txOrder, id)
	return tx, nil
}

// credit pays amount to addr when it belongs to the open wallet.
func (w *wallet) credit(tx *transaction, addr string, amount *big.Int) {
	a := w.ownerOf(addr)
	if a == nil {
		return
	}
	a.findAddress(addr).used = true
	tx.outputs = append(tx.outputs, a.addUtxo(tx.id, 0, new(big.Int).Set(amount), StateInMempool))
}

func (a *account) addUtxo(txID string, index uint32, amount *big.Int, state string) *utxo {
	u := &utxo{txID: txID, index: index, amount: amount, state: state}
	a.utxos = append(a.utxos, u)
	return u
}

func (a *account) findUnspent(txID string, index uint32) *utxo {
	for _, u := range a.utxos {
		if u.spentBy == "" && u.txID == txID && u.index == index {
			return u
		}
	}
	return nil
}

func (s *Server) handleAddressSend(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	dest, err := p.str(1, "address")
	if err != nil {
		return nil, err
	}
	if _, verr := types.ValidateAddress(dest, s.hrps.Address); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	amount, err := p.amount(2, CoinDecimals)
	if err != nil {
		return nil, err
	}
	var selected []types.UtxoOutpoint
	if _, err := p.decode(3, &selected); err != nil {
		return nil, err
	}
	if err := p.fee(4); err != nil {
		return nil, err
	}

	tx, err := s.spend(w, a, amount, selected, "transfer")
	if err != nil {
		return nil, err
	}
	w.credit(tx, dest, amount)
	s.logger.Debug().Str("tx", tx.id).Str("to", dest).Str("amount", formatAmount(amount, CoinDecimals)).Msg("Transaction submitted")
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleDepositData(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	data, err := p.str(1, "data")
	if err != nil {
		return nil, err
	}
	if _, herr := hex.DecodeString(data); herr != nil || data == "" {
		return nil, invalidParams("data must be non-empty hex")
	}
	if err := p.fee(2); err != nil {
		return nil, err
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "data_deposit")
	if err != nil {
		return nil, err
	}
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) txArg(p params) (*wallet, *transaction, *Error) {
	w, a, err := s.account(p)
	if err != nil {
		return nil, nil, err
	}
	id, err := p.str(1, "transaction id")
	if err != nil {
		return nil, nil, err
	}
	tx, ok := w.txs[id]
	if !ok || tx.account != a.index {
		return nil, nil, walletErr("Transaction %s not found", id)
	}
	return w, tx, nil
}

func (s *Server) handleTransactionGet(p params) (any, *Error) {
	_, tx, err := s.txArg(p)
	if err != nil {
		return nil, err
	}
	type txIO struct {
		Outpoint OutpointResult `json:"outpoint"`
		Value    AmountResult   `json:"value"`
	}
	res := struct {
		ID      string `json:"id"`
		Kind    string `json:"kind"`
		State   string `json:"state"`
		Inputs  []txIO `json:"inputs"`
		Outputs []txIO `json:"outputs"`
	}{ID: tx.id, Kind: tx.kind, State: tx.state, Inputs: []txIO{}, Outputs: []txIO{}}
	for _, u := range tx.inputs {
		res.Inputs = append(res.Inputs, txIO{OutpointResult{u.txID, strconv.FormatUint(uint64(u.index), 10)}, amountResult(u.amount, CoinDecimals)})
	}
	for _, u := range tx.outputs {
		res.Outputs = append(res.Outputs, txIO{OutpointResult{u.txID, strconv.FormatUint(uint64(u.index), 10)}, amountResult(u.amount, CoinDecimals)})
	}
	return res, nil
}

func (s *Server) handleTransactionGetSignedRaw(p params) (any, *Error) {
	_, tx, err := s.txArg(p)
	if err != nil {
		return nil, err
	}
	return tx.raw, nil
}

func (s *Server) handleTransactionListPending(p params) (any, *Error) {
	w, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, id := range w.txOrder {
		if tx := w.txs[id]; tx.account == a.index && tx.state == StateInMempool {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Server) handleTransactionAbandon(p params) (any, *Error) {
	_, tx, err := s.txArg(p)
	if err != nil {
		return nil, err
	}
	if tx.state != StateInMempool {
		return nil, walletErr("Cannot abandon a transaction in %s state", tx.state)
	}
	tx.state = "Abandoned"
	for _, u := range tx.inputs {
		u.spentBy = ""
	}
	for _, u := range tx.outputs {
		u.spentBy = "abandoned"
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	return nil, nil
}
