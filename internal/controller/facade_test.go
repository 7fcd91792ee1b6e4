package controller

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/wallet-controller/internal/mockd"
	"github.com/Klingon-tech/wallet-controller/internal/rpcclient"
	"github.com/Klingon-tech/wallet-controller/pkg/crypto"
	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func externalAddress(t *testing.T) string {
	t.Helper()
	addr, err := types.Bech32mEncode("rmt", make([]byte, 20))
	require.NoError(t, err)
	return addr
}

func produceBlock(t *testing.T, s *Session, poolID string) {
	t.Helper()
	arg := map[string]any{"count": 1, "pool_id": poolID}
	require.NoError(t, s.call(context.Background(), "mock_produce_block", []any{arg}, nil))
}

func rat(t *testing.T, a Amount) *big.Rat {
	t.Helper()
	r, ok := new(big.Rat).SetString(a.String())
	require.True(t, ok, "amount %q", a)
	return r
}

func TestNewAddress_RecordedOnce(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	addr, err := s.NewAddress(ctx)
	require.NoError(t, err)
	_, err = types.ValidateAddress(addr, "rmt")
	require.NoError(t, err)

	n, err := s.Transcript().Count("address_new")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.JSONEq(t, `[{"account":0}]`, string(lastCall(t, s, "address_new").Params))
}

func TestNewPublicKey_StripsTag(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	key, err := s.NewPublicKey(ctx)
	require.NoError(t, err)
	require.Len(t, key, crypto.XOnlyKeyLen)
	require.NoError(t, crypto.ValidateKeyMaterial(key))

	// The revealed key is the tag byte followed by the same material.
	addr, err := s.NewAddress(ctx)
	require.NoError(t, err)
	hexKey, err := s.RevealPublicKey(ctx, addr)
	require.NoError(t, err)
	pk, err := crypto.DecodeTaggedPublicKey(hexKey)
	require.NoError(t, err)
	require.Equal(t, crypto.TagSecp256k1Schnorr, pk.Tag)
	require.Len(t, pk.Key, crypto.XOnlyKeyLen)
}

func TestSelectAccount_ScopesEveryCall(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	name := "savings"
	info, err := s.CreateNewAccount(ctx, &name)
	require.NoError(t, err)
	require.EqualValues(t, 1, info.Account)
	require.JSONEq(t, `["savings",{}]`, string(lastCall(t, s, "account_create").Params))

	require.Equal(t, Success, s.SelectAccount(info.Account))
	require.Equal(t, info.Account, s.CurrentAccount())

	_, err = s.NewAddress(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `[{"account":1}]`, string(lastCall(t, s, "address_new").Params))

	// The new account holds nothing.
	bal, err := s.GetBalance(ctx, Unlocked, nil)
	require.NoError(t, err)
	require.Equal(t, "Coins amount: 0", bal)
	pools, err := s.ListPoolIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, pools)

	s.SelectAccount(0)
	bal, err = s.GetBalance(ctx, Unlocked, nil)
	require.NoError(t, err)
	require.Equal(t, "Coins amount: 2000", bal)

	_, err = s.CreateNewAccount(ctx, nil)
	require.NoError(t, err)
	require.JSONEq(t, `[null,{}]`, string(lastCall(t, s, "account_create").Params))
}

func TestGetBalance_CapitalisesLockedFilter(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	tests := []struct {
		locked WithLocked
		states []UtxoState
		params string
	}{
		{Unlocked, nil, `[{"account":0},"Unlocked",["Confirmed"]]`},
		{Locked, []UtxoState{StateConfirmed}, `[{"account":0},"Locked",["Confirmed"]]`},
		{AnyLocked, []UtxoState{StateConfirmed, StateInMempool}, `[{"account":0},"Any",["Confirmed","InMempool"]]`},
		{"", nil, `[{"account":0},"Unlocked",["Confirmed"]]`},
	}
	for _, tt := range tests {
		_, err := s.GetBalance(ctx, tt.locked, tt.states)
		require.NoError(t, err, "locked=%q", tt.locked)
		require.JSONEq(t, tt.params, string(lastCall(t, s, "account_balance").Params))
	}

	b, err := s.Balances(ctx, Unlocked, nil)
	require.NoError(t, err)
	require.Equal(t, Amount("2000"), b.Coins)
	require.Empty(t, b.Tokens)
}

func TestSend_PendingConfirmAbandon(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()
	dest := externalAddress(t)

	res, err := s.SendToAddress(ctx, dest, "10", nil)
	require.NoError(t, err)
	require.Equal(t, TxSubmitted, res)
	require.JSONEq(t, `[{"account":0},"`+dest+`","10",[],{"in_top_x_mb":5}]`,
		string(lastCall(t, s, "address_send").Params))

	pending, err := s.ListPendingTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	raw, err := s.GetTransaction(ctx, pending[0])
	require.NoError(t, err)
	var tx struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(raw, &tx))
	require.Equal(t, pending[0], tx.ID)
	require.Equal(t, "InMempool", tx.State)

	signed, err := s.GetRawSignedTransaction(ctx, pending[0])
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	// Change is unconfirmed until abandoned or mined.
	bal, err := s.GetBalance(ctx, Unlocked, []UtxoState{StateConfirmed, StateInMempool})
	require.NoError(t, err)
	require.Equal(t, "Coins amount: 1990", bal)

	res, err = s.AbandonTransaction(ctx, pending[0])
	require.NoError(t, err)
	require.Equal(t, Success, res)
	pending, err = s.ListPendingTransactions(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
	bal, err = s.GetBalance(ctx, Unlocked, nil)
	require.NoError(t, err)
	require.Equal(t, "Coins amount: 2000", bal)

	// A mined transaction cannot be abandoned.
	sent, err := s.Send(ctx, dest, "5", nil)
	require.NoError(t, err)
	produceBlock(t, s, "")
	_, err = s.AbandonTransaction(ctx, sent.TxID)
	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr)
}

func TestSend_SelectedUtxos(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	utxos, err := s.ListUtxos(ctx, "", Unlocked, []UtxoState{StateConfirmed, StateInMempool})
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.JSONEq(t, `[{"account":0},"","Unlocked","Confirmed,InMempool"]`,
		string(lastCall(t, s, "account_utxos").Params))

	sent, err := s.Send(ctx, externalAddress(t), "1.5", utxos)
	require.NoError(t, err)
	require.NotEmpty(t, sent.TxID)

	var params []json.RawMessage
	require.NoError(t, json.Unmarshal(lastCall(t, s, "address_send").Params, &params))
	var selected []types.UtxoOutpoint
	require.NoError(t, json.Unmarshal(params[3], &selected))
	require.Equal(t, utxos, selected)

	// The selected output is spent; only change remains.
	after, err := s.ListUtxos(ctx, "", "", []UtxoState{StateInMempool})
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, sent.TxID, after[0].ID)
	require.NotEqual(t, utxos[0], after[0])
}

func TestDepositData(t *testing.T) {
	s := walletSession(t)
	tx, err := s.DepositData(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.NotEmpty(t, tx.TxID)
	require.JSONEq(t, `[{"account":0},"deadbeef",{"in_top_x_mb":5}]`,
		string(lastCall(t, s, "address_deposit_data").Params))
}

func TestStakePool_CreditedByBlocks(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	res, err := s.CreateStakePool(ctx, "1000", "1", 50, "")
	require.NoError(t, err)
	require.Equal(t, TxSubmitted, res)
	require.JSONEq(t, `[{"account":0},"1000","1","50",null,{"in_top_x_mb":5}]`,
		string(lastCall(t, s, "staking_create_pool").Params))

	pools, err := s.ListPoolIDs(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	poolID := pools[0].PoolID
	require.NoError(t, types.ValidatePoolID(poolID, types.ChainHRPs{Pool: "rpool"}))
	before := rat(t, pools[0].Balance)

	produceBlock(t, s, poolID)

	pools, err = s.ListPoolIDs(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.GreaterOrEqual(t, rat(t, pools[0].Balance).Cmp(before), 0, "pool balance decreased")

	blocks, err := s.ListCreatedBlockIDs(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.EqualValues(t, 1, blocks[0].BlockHeight)

	height, err := s.BestBlockHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, "1", height)
	best, err := s.BestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, blocks[0].BlockID, best.ID)

	res, err = s.DecommissionStakePool(ctx, poolID, externalAddress(t))
	require.NoError(t, err)
	require.Equal(t, TxSubmitted, res)
	pools, err = s.ListPoolIDs(ctx)
	require.NoError(t, err)
	require.Empty(t, pools)
}

func TestStakePool_FractionalMargin(t *testing.T) {
	s := walletSession(t)
	_, err := s.CreateStakePool(context.Background(), "100", "0.5", 12.5, "")
	require.NoError(t, err)

	var params []any
	require.NoError(t, json.Unmarshal(lastCall(t, s, "staking_create_pool").Params, &params))
	require.Equal(t, "12.5", params[3])
}

func TestStakingStatus(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	st, err := s.StakingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, NotStaking, st)
	require.Equal(t, "Not staking", st.String())

	res, err := s.StartStaking(ctx)
	require.NoError(t, err)
	require.Equal(t, StakingStarted, res)

	st, err = s.StakingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, Staking, st)
	require.Equal(t, "Staking", st.String())

	res, err = s.StopStaking(ctx)
	require.NoError(t, err)
	require.Equal(t, Success, res)
	st, err = s.StakingStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, NotStaking, st)
}

func TestStakingStatus_PropagatesErrors(t *testing.T) {
	s := walletSession(t)
	injectFault(t, s, mockd.Fault{Method: "staking_status", Kind: mockd.FaultError, Code: -32000, Message: "node unreachable", Times: 1})

	_, err := s.StakingStatus(context.Background())
	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32000, rpcErr.Code)
	require.Equal(t, "node unreachable", rpcErr.Message)

	// The fault was one-shot.
	st, err := s.StakingStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, NotStaking, st)
}

func TestDelegation(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	_, err := s.CreateStakePool(ctx, "500", "1", 100, "")
	require.NoError(t, err)
	pools, err := s.ListPoolIDs(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	addr, err := s.NewAddress(ctx)
	require.NoError(t, err)
	id, err := s.CreateDelegation(ctx, addr, pools[0].PoolID)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	res, err := s.StakeDelegation(ctx, "100", id)
	require.NoError(t, err)
	require.Equal(t, Success, res)

	ds, err := s.ListDelegationIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []DelegationData{{DelegationID: id, Balance: "100"}}, ds)

	tx, err := s.WithdrawFromDelegation(ctx, addr, "40", id)
	require.NoError(t, err)
	require.NotEmpty(t, tx.TxID)
	ds, err = s.ListDelegationIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, Amount("60"), ds[0].Balance)

	_, err = s.WithdrawFromDelegation(ctx, addr, "1000", id)
	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr)
}

func TestTokenLifecycle(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()

	addr, err := s.NewAddress(ctx)
	require.NoError(t, err)
	tok, err := s.IssueNewToken(ctx, TokenIssuance{
		Ticker:      "XYZ",
		Decimals:    2,
		MetadataURI: "http://uri",
		Destination: addr,
		Supply:      SupplyLockable,
	})
	require.NoError(t, err)
	require.NotEmpty(t, tok.TokenID)
	require.JSONEq(t, `[{"account":0},"XYZ",2,"http://uri","`+addr+`","lockable","freezable",{"in_top_x_mb":5}]`,
		string(lastCall(t, s, "token_issue_new").Params))

	_, err = s.MintTokens(ctx, tok.TokenID, addr, "100")
	require.NoError(t, err)
	b, err := s.Balances(ctx, Unlocked, nil)
	require.NoError(t, err)
	require.Equal(t, Amount("100"), b.Tokens[tok.TokenID])

	_, err = s.UnmintTokens(ctx, tok.TokenID, "10.5")
	require.NoError(t, err)
	require.JSONEq(t, `[{"account":0},"`+tok.TokenID+`","10.5",{"in_top_x_mb":5}]`,
		string(lastCall(t, s, "token_unmint").Params))

	_, err = s.SendTokensToAddress(ctx, tok.TokenID, externalAddress(t), "9.5")
	require.NoError(t, err)
	b, err = s.Balances(ctx, Unlocked, nil)
	require.NoError(t, err)
	require.Equal(t, Amount("80"), b.Tokens[tok.TokenID])

	_, err = s.FreezeToken(ctx, tok.TokenID, Unfreezable)
	require.NoError(t, err)
	_, err = s.MintTokens(ctx, tok.TokenID, addr, "1")
	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr, "mint while frozen")
	_, err = s.UnfreezeToken(ctx, tok.TokenID)
	require.NoError(t, err)

	_, err = s.LockTokenSupply(ctx, tok.TokenID)
	require.NoError(t, err)
	_, err = s.MintTokens(ctx, tok.TokenID, addr, "1")
	require.ErrorAs(t, err, &rpcErr, "mint after lock")

	other, err := s.NewAddress(ctx)
	require.NoError(t, err)
	_, err = s.ChangeTokenAuthority(ctx, tok.TokenID, other)
	require.NoError(t, err)
}

func TestTokenFixedSupply(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()
	addr, err := s.NewAddress(ctx)
	require.NoError(t, err)

	tok, err := s.IssueNewToken(ctx, TokenIssuance{
		Ticker:      "FIX",
		Decimals:    0,
		Destination: addr,
		Supply:      FixedSupply("10"),
		Freezable:   NotFreezable,
	})
	require.NoError(t, err)
	_, err = s.MintTokens(ctx, tok.TokenID, addr, "10")
	require.NoError(t, err)
	_, err = s.MintTokens(ctx, tok.TokenID, addr, "1")
	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr)
	_, err = s.FreezeToken(ctx, tok.TokenID, NotUnfreezable)
	require.ErrorAs(t, err, &rpcErr, "freeze of a non-freezable token")
}

func TestIssueNewNft_SendsEmptyOptionalFields(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()
	addr, err := s.NewAddress(ctx)
	require.NoError(t, err)

	nft, err := s.IssueNewNft(ctx, addr, NftMetadata{
		MediaHash:   "123456",
		Name:        "Name",
		Description: "SomeNFT",
		Ticker:      "XXX",
	})
	require.NoError(t, err)
	require.NotEmpty(t, nft.TokenID)

	var params []json.RawMessage
	require.NoError(t, json.Unmarshal(lastCall(t, s, "token_nft_issue_new").Params, &params))
	require.JSONEq(t, `{
		"media_hash": "123456",
		"name": "Name",
		"description": "SomeNFT",
		"ticker": "XXX",
		"creator": "",
		"icon_uri": "",
		"media_uri": "",
		"additional_metadata_uri": ""
	}`, string(params[2]))
}

func TestWalletManagement(t *testing.T) {
	s := startSession(t, testConfig(t))
	ctx := context.Background()

	_, err := s.RecoverWallet(ctx, "recovered", "not a mnemonic")
	require.Error(t, err)
	n, err := s.Transcript().Count("wallet_create")
	require.NoError(t, err)
	require.Zero(t, n, "invalid mnemonic reached the daemon")

	res, err := s.RecoverWallet(ctx, "recovered", testMnemonic)
	require.NoError(t, err)
	require.Equal(t, Success, res)

	seed, err := s.ShowSeedPhrase(ctx)
	require.NoError(t, err)
	require.NotNil(t, seed)
	require.Len(t, seed.Words, 12)

	_, err = s.Sync(ctx)
	require.NoError(t, err)
	_, err = s.Rescan(ctx)
	require.NoError(t, err)

	_, err = s.EncryptPrivateKeys(ctx, "hunter2")
	require.NoError(t, err)
	_, err = s.LockPrivateKeys(ctx)
	require.NoError(t, err)
	_, err = s.SendToAddress(ctx, externalAddress(t), "1", nil)
	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr, "send with locked keys")
	_, err = s.UnlockPrivateKeys(ctx, "hunter2")
	require.NoError(t, err)
	_, err = s.RemovePrivateKeyEncryption(ctx)
	require.NoError(t, err)

	purged, err := s.PurgeSeedPhrase(ctx)
	require.NoError(t, err)
	require.Equal(t, seed.Words, purged.Words)
	seed, err = s.ShowSeedPhrase(ctx)
	require.NoError(t, err)
	require.Nil(t, seed)

	_, err = s.CloseWallet(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(lastCall(t, s, "wallet_close").Params))
	res, err = s.OpenWallet(ctx, "recovered")
	require.NoError(t, err)
	require.Equal(t, Success, res)
	require.JSONEq(t, `["`+s.Config().WalletFile("recovered")+`",null]`, string(lastCall(t, s, "wallet_open").Params))

	_, err = s.OpenWallet(ctx, "recovered")
	require.ErrorAs(t, err, &rpcErr, "second open")

	usage, err := s.AddressesUsage(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(usage))
}

func TestRecoverWallet_Deterministic(t *testing.T) {
	ctx := context.Background()
	var addrs []string
	for i := 0; i < 2; i++ {
		s := startSession(t, testConfig(t))
		_, err := s.RecoverWallet(ctx, "", testMnemonic)
		require.NoError(t, err)
		addr, err := s.NewAddress(ctx)
		require.NoError(t, err)
		addrs = append(addrs, addr)
		require.NoError(t, s.Close())
	}
	require.Equal(t, addrs[0], addrs[1])
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name  string
		kind  mockd.FaultKind
		check func(t *testing.T, err error)
	}{
		{"rpc error", mockd.FaultError, func(t *testing.T, err error) {
			var rpcErr *rpcclient.RPCError
			require.ErrorAs(t, err, &rpcErr)
		}},
		{"malformed body", mockd.FaultMalformed, func(t *testing.T, err error) {
			var te *rpcclient.TransportError
			require.ErrorAs(t, err, &te)
		}},
		{"http 500", mockd.FaultHTTP500, func(t *testing.T, err error) {
			var te *rpcclient.TransportError
			require.ErrorAs(t, err, &te)
			require.Equal(t, 500, te.Status)
		}},
		{"no result", mockd.FaultNoResult, func(t *testing.T, err error) {
			var te *rpcclient.TransportError
			require.ErrorAs(t, err, &te)
		}},
		{"wrong id", mockd.FaultWrongID, func(t *testing.T, err error) {
			var te *rpcclient.TransportError
			require.ErrorAs(t, err, &te)
		}},
	}

	s := walletSession(t)
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			injectFault(t, s, mockd.Fault{Method: "address_new", Kind: tt.kind, Times: 1})
			_, err := s.NewAddress(ctx)
			tt.check(t, err)

			// The failed exchange is in the transcript and the session
			// keeps working.
			e := lastCall(t, s, "address_new")
			require.NotEmpty(t, e.Error)
			_, err = s.NewAddress(ctx)
			require.NoError(t, err)
		})
	}
}

func TestCallTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Timeout = 300 * time.Millisecond
	s := startSession(t, cfg)
	ctx := context.Background()
	_, err := s.CreateWallet(ctx, "")
	require.NoError(t, err)

	injectFault(t, s, mockd.Fault{Method: "staking_status", Kind: mockd.FaultDelay, DelayMS: 2000, Times: 1})
	_, err = s.StakingStatus(ctx)
	var te *rpcclient.TransportError
	require.ErrorAs(t, err, &te)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequestIDsIncrease(t *testing.T) {
	s := walletSession(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.NewAddress(ctx)
		require.NoError(t, err)
	}
	_, err := s.ListPoolIDs(ctx)
	require.NoError(t, err)

	entries, err := s.Transcript().Entries()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 5)
	for i := 1; i < len(entries); i++ {
		require.Greater(t, entries[i].ID, entries[i-1].ID)
	}
}
