package mockd

import (
	"math/big"
	"strconv"

	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

func (s *Server) poolArg(p params, i int) (*pool, *Error) {
	id, err := p.str(i, "pool id")
	if err != nil {
		return nil, err
	}
	if verr := types.ValidatePoolID(id, s.hrps); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	pl, ok := s.chain.pools[id]
	if !ok {
		return nil, walletErr("Pool %s not found", id)
	}
	return pl, nil
}

func (s *Server) delegationArg(p params, i int) (*delegation, *Error) {
	id, err := p.str(i, "delegation id")
	if err != nil {
		return nil, err
	}
	if verr := types.ValidateDelegationID(id, s.hrps); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	d, ok := s.chain.delegations[id]
	if !ok {
		return nil, walletErr("Delegation %s not found", id)
	}
	return d, nil
}

func (s *Server) addressArg(p params, i int) (string, *Error) {
	addr, err := p.str(i, "address")
	if err != nil {
		return "", err
	}
	if _, verr := types.ValidateAddress(addr, s.hrps.Address); verr != nil {
		return "", invalidParams("%v", verr)
	}
	return addr, nil
}

func (s *Server) removePool(id string) {
	delete(s.chain.pools, id)
	for i, pid := range s.chain.poolOrder {
		if pid == id {
			s.chain.poolOrder = append(s.chain.poolOrder[:i], s.chain.poolOrder[i+1:]...)
			break
		}
	}
}

func (s *Server) handleCreatePool(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	amount, err := p.amount(1, CoinDecimals)
	if err != nil {
		return nil, err
	}
	cost, err := p.amount(2, CoinDecimals)
	if err != nil {
		return nil, err
	}
	marginStr, err := p.str(3, "margin ratio per thousand")
	if err != nil {
		return nil, err
	}
	margin, perr := strconv.ParseFloat(marginStr, 64)
	if perr != nil || margin < 0 || margin > 1000 {
		return nil, invalidParams("invalid margin ratio per thousand %q", marginStr)
	}
	var decommissionKey string
	if _, err := p.decode(4, &decommissionKey); err != nil {
		return nil, err
	}
	if err := p.fee(5); err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, walletErr("Pool pledge must be positive")
	}

	tx, err := s.spend(w, a, amount, nil, "create_stake_pool")
	if err != nil {
		return nil, err
	}
	h := s.chain.nextID("pool")
	id, _ := types.Bech32mEncode(s.hrps.Pool, h[:])
	s.chain.pools[id] = &pool{
		id:              id,
		owner:           owner{wallet: w.path, account: a.index},
		pledge:          new(big.Int).Set(amount),
		balance:         new(big.Int).Set(amount),
		costPerBlock:    cost,
		marginPerMille:  margin,
		decommissionKey: decommissionKey,
	}
	s.chain.poolOrder = append(s.chain.poolOrder, id)
	tx.undo = append(tx.undo, func() { s.removePool(id) })
	s.logger.Debug().Str("pool", id).Str("pledge", formatAmount(amount, CoinDecimals)).Msg("Stake pool created")
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleDecommissionPool(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	pl, err := s.poolArg(p, 1)
	if err != nil {
		return nil, err
	}
	dest, err := s.addressArg(p, 2)
	if err != nil {
		return nil, err
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}
	if !pl.owner.is(w, a) {
		return nil, walletErr("Pool %s is not owned by account %d", pl.id, a.index)
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "decommission_stake_pool")
	if err != nil {
		return nil, err
	}
	s.removePool(pl.id)
	w.credit(tx, dest, pl.balance)
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleListPoolIDs(p params) (any, *Error) {
	w, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	out := []PoolResult{}
	for _, id := range s.chain.poolOrder {
		pl := s.chain.pools[id]
		if !pl.owner.is(w, a) {
			continue
		}
		out = append(out, PoolResult{
			PoolID:  pl.id,
			Pledge:  formatAmount(pl.pledge, CoinDecimals),
			Balance: formatAmount(pl.balance, CoinDecimals),
		})
	}
	return out, nil
}

func (s *Server) handleListCreatedBlockIDs(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	out := append([]CreatedBlockResult{}, a.blocks...)
	return out, nil
}

func (s *Server) handleStakingStart(p params) (any, *Error) {
	_, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	if a.staking {
		return nil, walletErr("Staking is already started for account %d", a.index)
	}
	a.staking = true
	s.logger.Info().Uint32("account", a.index).Msg("Staking started")
	return nil, nil
}

func (s *Server) handleStakingStop(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	a.staking = false
	return nil, nil
}

func (s *Server) handleStakingStatus(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	if a.staking {
		return "Staking", nil
	}
	return "NotStaking", nil
}

func (s *Server) handleDelegationCreate(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.addressArg(p, 1); err != nil {
		return nil, err
	}
	pl, err := s.poolArg(p, 2)
	if err != nil {
		return nil, err
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "create_delegation")
	if err != nil {
		return nil, err
	}
	h := s.chain.nextID("delegation")
	id, _ := types.Bech32mEncode(s.hrps.Delegation, h[:])
	s.chain.delegations[id] = &delegation{
		id:      id,
		owner:   owner{wallet: w.path, account: a.index},
		poolID:  pl.id,
		balance: new(big.Int),
	}
	tx.undo = append(tx.undo, func() { delete(s.chain.delegations, id) })
	return NewDelegationResult{DelegationID: id, TxID: tx.id}, nil
}

func (s *Server) handleDelegationStake(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	amount, err := p.amount(1, CoinDecimals)
	if err != nil {
		return nil, err
	}
	d, err := s.delegationArg(p, 2)
	if err != nil {
		return nil, err
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}
	pl, ok := s.chain.pools[d.poolID]
	if !ok {
		return nil, walletErr("Pool %s of delegation %s no longer exists", d.poolID, d.id)
	}
	tx, err := s.spend(w, a, amount, nil, "delegate_staking")
	if err != nil {
		return nil, err
	}
	d.balance.Add(d.balance, amount)
	pl.balance.Add(pl.balance, amount)
	tx.undo = append(tx.undo, func() {
		d.balance.Sub(d.balance, amount)
		pl.balance.Sub(pl.balance, amount)
	})
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleDelegationWithdraw(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	dest, err := s.addressArg(p, 1)
	if err != nil {
		return nil, err
	}
	amount, err := p.amount(2, CoinDecimals)
	if err != nil {
		return nil, err
	}
	d, err := s.delegationArg(p, 3)
	if err != nil {
		return nil, err
	}
	if err := p.fee(4); err != nil {
		return nil, err
	}
	if !d.owner.is(w, a) {
		return nil, walletErr("Delegation %s is not owned by account %d", d.id, a.index)
	}
	if d.balance.Cmp(amount) < 0 {
		return nil, walletErr("Not enough delegated: have %s, need %s",
			formatAmount(d.balance, CoinDecimals), formatAmount(amount, CoinDecimals))
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "withdraw_delegation")
	if err != nil {
		return nil, err
	}
	d.balance.Sub(d.balance, amount)
	if pl, ok := s.chain.pools[d.poolID]; ok {
		pl.balance.Sub(pl.balance, amount)
	}
	w.credit(tx, dest, amount)
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleDelegationListIDs(p params) (any, *Error) {
	w, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	out := []DelegationResult{}
	for _, d := range s.chain.delegations {
		if !d.owner.is(w, a) {
			continue
		}
		out = append(out, DelegationResult{
			DelegationID: d.id,
			PoolID:       d.poolID,
			Balance:      formatAmount(d.balance, CoinDecimals),
		})
	}
	sortDelegations(out)
	return out, nil
}
