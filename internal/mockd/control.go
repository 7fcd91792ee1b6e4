package mockd

import (
	"slices"
	"strconv"
	"strings"
)

// Control methods. They are not part of the daemon's vocabulary and exist so
// tests can drive the simulated chain.

// ProduceBlocks appends count blocks, confirming pending transactions and
// crediting the block reward to a pool. An empty poolID picks the first
// pool of a staking account of the open wallet.
func (s *Server) ProduceBlocks(count int, poolID string) (BlockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.produceBlocks(count, poolID); err != nil {
		return BlockInfo{}, err
	}
	return s.chain.bestBlock(), nil
}

func (s *Server) produceBlocks(count int, poolID string) *Error {
	if poolID != "" {
		if _, ok := s.chain.pools[poolID]; !ok {
			return walletErr("Pool %s not found", poolID)
		}
	}
	for i := 0; i < count; i++ {
		id := s.chain.advance()
		s.confirmPending()

		staker := poolID
		if staker == "" {
			staker = s.stakingPool()
		}
		pl, ok := s.chain.pools[staker]
		if !ok {
			continue
		}
		pl.balance.Add(pl.balance, s.reward)
		if w := s.wallet; w != nil {
			if a, ok := w.account(pl.owner.account); ok && pl.owner.is(w, a) {
				a.blocks = append(a.blocks, CreatedBlockResult{
					ID:     id.String(),
					Height: strconv.FormatUint(s.chain.height, 10),
				})
			}
		}
	}
	s.logger.Debug().Uint64("height", s.chain.height).Int("count", count).Msg("Blocks produced")
	return nil
}

func (s *Server) confirmPending() {
	w := s.wallet
	if w == nil {
		return
	}
	for _, id := range w.txOrder {
		tx := w.txs[id]
		if tx.state != StateInMempool {
			continue
		}
		tx.state = StateConfirmed
		for _, u := range tx.outputs {
			if u.state == StateInMempool {
				u.state = StateConfirmed
			}
		}
	}
}

func (s *Server) stakingPool() string {
	w := s.wallet
	if w == nil {
		return ""
	}
	for _, id := range s.chain.poolOrder {
		pl := s.chain.pools[id]
		if a, ok := w.account(pl.owner.account); ok && a.staking && pl.owner.is(w, a) {
			return id
		}
	}
	return ""
}

func (s *Server) handleProduceBlock(p params) (any, *Error) {
	var arg struct {
		Count  int    `json:"count"`
		PoolID string `json:"pool_id"`
	}
	if _, err := p.decode(0, &arg); err != nil {
		return nil, err
	}
	if arg.Count <= 0 {
		arg.Count = 1
	}
	if err := s.produceBlocks(arg.Count, arg.PoolID); err != nil {
		return nil, err
	}
	return s.chain.bestBlock(), nil
}

func (s *Server) handleFund(p params) (any, *Error) {
	_, a, err := s.account(p)
	if err != nil {
		return nil, err
	}
	amount, err := p.amount(1, CoinDecimals)
	if err != nil {
		return nil, err
	}
	id := s.chain.nextID("fund").String()
	a.addUtxo(id, 0, amount, StateConfirmed)
	return NewTxResult{TxID: id}, nil
}

func (s *Server) handleFault(p params) (any, *Error) {
	var f Fault
	if err := p.require(0, "fault", &f); err != nil {
		return nil, err
	}
	if f.Method == "" {
		return nil, invalidParams("fault needs a method")
	}
	switch f.Kind {
	case FaultError, FaultMalformed, FaultHTTP500, FaultDelay, FaultNoResult, FaultWrongID:
	default:
		return nil, invalidParams("unknown fault kind %q", f.Kind)
	}
	s.faults.set(f)
	return nil, nil
}

func sortDelegations(ds []DelegationResult) {
	slices.SortFunc(ds, func(a, b DelegationResult) int {
		return strings.Compare(a.DelegationID, b.DelegationID)
	})
}

