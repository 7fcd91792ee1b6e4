package controller

import (
	"context"
	"strconv"
)

// CreateStakePool creates a pool pledging amount. The margin ratio is per
// thousand. An empty decommissionKey lets the account's own key
// decommission the pool.
func (s *Session) CreateStakePool(ctx context.Context, amount, costPerBlock Amount, marginRatioPerThousand float64, decommissionKey string) (string, error) {
	var key any
	if decommissionKey != "" {
		key = decommissionKey
	}
	params := []any{
		s.acct(),
		amount,
		costPerBlock,
		strconv.FormatFloat(marginRatioPerThousand, 'f', -1, 64),
		key,
		s.fee(),
	}
	if err := s.call(ctx, "staking_create_pool", params, nil); err != nil {
		return "", err
	}
	return TxSubmitted, nil
}

// DecommissionStakePool closes a pool and sends its funds to address.
func (s *Session) DecommissionStakePool(ctx context.Context, poolID, address string) (string, error) {
	if err := s.call(ctx, "staking_decommission_pool", []any{s.acct(), poolID, address, s.fee()}, nil); err != nil {
		return "", err
	}
	return TxSubmitted, nil
}

// ListPoolIDs lists the pools owned by the current account.
func (s *Session) ListPoolIDs(ctx context.Context) ([]PoolData, error) {
	var out []PoolData
	err := s.call(ctx, "staking_list_pool_ids", []any{s.acct()}, &out)
	return out, err
}

// ListCreatedBlockIDs lists the blocks produced by the account's pools.
func (s *Session) ListCreatedBlockIDs(ctx context.Context) ([]CreatedBlockInfo, error) {
	var out []CreatedBlockInfo
	err := s.call(ctx, "staking_list_created_block_ids", []any{s.acct()}, &out)
	return out, err
}

// CreateDelegation creates a delegation to poolID owned by address and
// returns its id.
func (s *Session) CreateDelegation(ctx context.Context, address, poolID string) (string, error) {
	var out struct {
		DelegationID string `json:"delegation_id"`
	}
	if err := s.call(ctx, "delegation_create", []any{s.acct(), address, poolID, s.fee()}, &out); err != nil {
		return "", err
	}
	return out.DelegationID, nil
}

// StakeDelegation adds amount to a delegation.
func (s *Session) StakeDelegation(ctx context.Context, amount Amount, delegationID string) (string, error) {
	if err := s.call(ctx, "delegation_stake", []any{s.acct(), amount, delegationID, s.fee()}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// WithdrawFromDelegation sends amount out of a delegation to address.
func (s *Session) WithdrawFromDelegation(ctx context.Context, address string, amount Amount, delegationID string) (NewTransaction, error) {
	var out NewTransaction
	err := s.call(ctx, "delegation_withdraw", []any{s.acct(), address, amount, delegationID, s.fee()}, &out)
	return out, err
}

// ListDelegationIDs lists the delegations owned by the current account.
func (s *Session) ListDelegationIDs(ctx context.Context) ([]DelegationData, error) {
	var out []DelegationData
	err := s.call(ctx, "delegation_list_ids", []any{s.acct()}, &out)
	return out, err
}

// StartStaking starts block production for the account's pools.
func (s *Session) StartStaking(ctx context.Context) (string, error) {
	if err := s.call(ctx, "staking_start", []any{s.acct()}, nil); err != nil {
		return "", err
	}
	return StakingStarted, nil
}

// StopStaking stops block production.
func (s *Session) StopStaking(ctx context.Context) (string, error) {
	if err := s.call(ctx, "staking_stop", []any{s.acct()}, nil); err != nil {
		return "", err
	}
	return Success, nil
}

// StakingStatus reports whether the account is staking. Only the daemon's
// literal "Staking" maps to Staking; call failures are returned as errors.
func (s *Session) StakingStatus(ctx context.Context) (StakingStatus, error) {
	var out string
	if err := s.call(ctx, "staking_status", []any{s.acct()}, &out); err != nil {
		return NotStaking, err
	}
	if out == "Staking" {
		return Staking, nil
	}
	return NotStaking, nil
}
