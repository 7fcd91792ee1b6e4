package controller

import "context"

// IssueNewToken issues a fungible token. An empty Supply means unlimited
// and an empty Freezable means freezable.
func (s *Session) IssueNewToken(ctx context.Context, t TokenIssuance) (NewTokenInfo, error) {
	if t.Supply == "" {
		t.Supply = SupplyUnlimited
	}
	if t.Freezable == "" {
		t.Freezable = Freezable
	}
	params := []any{
		s.acct(),
		t.Ticker,
		t.Decimals,
		t.MetadataURI,
		t.Destination,
		string(t.Supply),
		string(t.Freezable),
		s.fee(),
	}
	var out NewTokenInfo
	err := s.call(ctx, "token_issue_new", params, &out)
	return out, err
}

// IssueNewNft issues an NFT to destination.
func (s *Session) IssueNewNft(ctx context.Context, destination string, meta NftMetadata) (NewTokenInfo, error) {
	var out NewTokenInfo
	err := s.call(ctx, "token_nft_issue_new", []any{s.acct(), destination, meta, s.fee()}, &out)
	return out, err
}

// MintTokens mints amount of a token to address.
func (s *Session) MintTokens(ctx context.Context, tokenID, address string, amount Amount) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_mint", s.acct(), tokenID, address, amount)
}

// UnmintTokens burns amount of a token held by the account.
func (s *Session) UnmintTokens(ctx context.Context, tokenID string, amount Amount) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_unmint", s.acct(), tokenID, amount)
}

// LockTokenSupply prevents any further minting or unminting.
func (s *Session) LockTokenSupply(ctx context.Context, tokenID string) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_lock_supply", s.acct(), tokenID)
}

// FreezeToken freezes every operation on a token.
func (s *Session) FreezeToken(ctx context.Context, tokenID string, unfreezable IsUnfreezable) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_freeze", s.acct(), tokenID, string(unfreezable))
}

// UnfreezeToken lifts a freeze.
func (s *Session) UnfreezeToken(ctx context.Context, tokenID string) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_unfreeze", s.acct(), tokenID)
}

// ChangeTokenAuthority hands a token's authority to another address.
func (s *Session) ChangeTokenAuthority(ctx context.Context, tokenID, newAuthority string) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_change_authority", s.acct(), tokenID, newAuthority)
}

// SendTokensToAddress sends amount of a token to address.
func (s *Session) SendTokensToAddress(ctx context.Context, tokenID, address string, amount Amount) (NewTransaction, error) {
	return s.tokenTx(ctx, "token_send", s.acct(), tokenID, address, amount)
}

// tokenTx calls a fee-paying token method, appending the fee policy to
// params.
func (s *Session) tokenTx(ctx context.Context, method string, params ...any) (NewTransaction, error) {
	var out NewTransaction
	err := s.call(ctx, method, append(params, s.fee()), &out)
	return out, err
}
