package mockd

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

// nftMetadataKeys must all be present in NFT metadata; empty values are
// allowed for the optional ones.
var nftMetadataKeys = []string{
	"media_hash", "name", "description", "ticker",
	"creator", "icon_uri", "media_uri", "additional_metadata_uri",
}

var nftRequiredKeys = []string{"media_hash", "name", "description", "ticker"}

// tokenAmount decodes an amount given either as a decimal string or as a
// JSON number.
func (p params) tokenAmount(i, decimals int) (*big.Int, *Error) {
	var raw json.RawMessage
	if err := p.require(i, "amount", &raw); err != nil {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	v, err := parseAmount(s, decimals)
	if err != nil {
		return nil, invalidParams("param %d: %v", i, err)
	}
	return v, nil
}

func (s *Server) tokenArg(p params, i int) (*token, *Error) {
	id, err := p.str(i, "token id")
	if err != nil {
		return nil, err
	}
	if verr := types.ValidateTokenID(id, s.hrps); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	t, ok := s.chain.tokens[id]
	if !ok {
		return nil, walletErr("Token %s not found", id)
	}
	return t, nil
}

// authorityCheck fails unless the open wallet controls the token authority.
func (w *wallet) authorityCheck(t *token) *Error {
	if w.ownerOf(t.authority) == nil {
		return walletErr("Wallet is not the authority of token %s", t.id)
	}
	return nil
}

func (s *Server) newTokenID() string {
	h := s.chain.nextID("token")
	id, _ := types.Bech32mEncode(s.hrps.Token, h[:])
	return id
}

func (s *Server) handleTokenIssueNew(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	ticker, err := p.str(1, "ticker")
	if err != nil {
		return nil, err
	}
	var decimals int
	if err := p.require(2, "number of decimals", &decimals); err != nil {
		return nil, err
	}
	uri, err := p.str(3, "metadata uri")
	if err != nil {
		return nil, err
	}
	dest, err := p.str(4, "destination address")
	if err != nil {
		return nil, err
	}
	supply, err := p.str(5, "token supply")
	if err != nil {
		return nil, err
	}
	freezable, err := p.str(6, "is freezable")
	if err != nil {
		return nil, err
	}
	if err := p.fee(7); err != nil {
		return nil, err
	}

	if ticker == "" || len(ticker) > 12 {
		return nil, invalidParams("invalid ticker %q", ticker)
	}
	if decimals < 0 || decimals > 18 {
		return nil, invalidParams("invalid number of decimals %d", decimals)
	}
	if _, verr := types.ValidateAddress(dest, s.hrps.Address); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	t := &token{
		ticker:      ticker,
		decimals:    decimals,
		metadataURI: uri,
		authority:   dest,
		circulating: new(big.Int),
	}
	switch {
	case supply == "unlimited" || supply == "lockable":
		t.supply = supply
	default:
		v, perr := parseAmount(strings.TrimPrefix(supply, "fixed:"), decimals)
		if perr != nil {
			return nil, invalidParams("unknown token supply %q", supply)
		}
		t.supply, t.fixedSupply = "fixed", v
	}
	switch freezable {
	case "freezable":
		t.freezable = true
	case "not_freezable":
	default:
		return nil, invalidParams("unknown freezable value %q", freezable)
	}

	tx, err := s.spend(w, a, new(big.Int), nil, "token_issue")
	if err != nil {
		return nil, err
	}
	t.id = s.newTokenID()
	s.chain.tokens[t.id] = t
	tx.undo = append(tx.undo, func() { delete(s.chain.tokens, t.id) })
	s.logger.Debug().Str("token", t.id).Str("ticker", ticker).Msg("Token issued")
	return NewTokenResult{TokenID: t.id, TxID: tx.id}, nil
}

func (s *Server) handleNftIssueNew(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	dest, err := p.str(1, "destination address")
	if err != nil {
		return nil, err
	}
	if _, verr := types.ValidateAddress(dest, s.hrps.Address); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	var meta map[string]*string
	if err := p.require(2, "metadata", &meta); err != nil {
		return nil, err
	}
	for _, k := range nftMetadataKeys {
		if v, ok := meta[k]; !ok || v == nil {
			return nil, invalidParams("missing field `%s`", k)
		}
	}
	for _, k := range nftRequiredKeys {
		if *meta[k] == "" {
			return nil, invalidParams("empty %s", k)
		}
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}

	tx, err := s.spend(w, a, new(big.Int), nil, "nft_issue")
	if err != nil {
		return nil, err
	}
	t := &token{
		id:          s.newTokenID(),
		ticker:      *meta["ticker"],
		metadataURI: *meta["additional_metadata_uri"],
		authority:   dest,
		supply:      "fixed",
		fixedSupply: big.NewInt(1),
		circulating: big.NewInt(1),
		locked:      true,
		nft:         true,
	}
	s.chain.tokens[t.id] = t
	if owner := w.ownerOf(dest); owner != nil {
		owner.tokenBalance(t.id).Add(owner.tokenBalance(t.id), big.NewInt(1))
	}
	return NewTokenResult{TokenID: t.id, TxID: tx.id}, nil
}

func (s *Server) handleTokenMint(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	dest, err := p.str(2, "address")
	if err != nil {
		return nil, err
	}
	if _, verr := types.ValidateAddress(dest, s.hrps.Address); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	amount, err := p.tokenAmount(3, t.decimals)
	if err != nil {
		return nil, err
	}
	if err := p.fee(4); err != nil {
		return nil, err
	}
	if err := w.authorityCheck(t); err != nil {
		return nil, err
	}
	if err := t.checkChangeable(); err != nil {
		return nil, err
	}
	if t.supply == "fixed" {
		after := new(big.Int).Add(t.circulating, amount)
		if after.Cmp(t.fixedSupply) > 0 {
			return nil, walletErr("Minting %s exceeds the fixed supply of token %s", formatAmount(amount, t.decimals), t.id)
		}
	}

	tx, err := s.spend(w, a, new(big.Int), nil, "token_mint")
	if err != nil {
		return nil, err
	}
	t.circulating.Add(t.circulating, amount)
	if owner := w.ownerOf(dest); owner != nil {
		owner.tokenBalance(t.id).Add(owner.tokenBalance(t.id), amount)
	}
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleTokenUnmint(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	amount, err := p.tokenAmount(2, t.decimals)
	if err != nil {
		return nil, err
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}
	if err := w.authorityCheck(t); err != nil {
		return nil, err
	}
	if err := t.checkChangeable(); err != nil {
		return nil, err
	}
	bal := a.tokenBalance(t.id)
	if bal.Cmp(amount) < 0 {
		return nil, walletErr("Not enough tokens to unmint: have %s", formatAmount(bal, t.decimals))
	}

	tx, err := s.spend(w, a, new(big.Int), nil, "token_unmint")
	if err != nil {
		return nil, err
	}
	bal.Sub(bal, amount)
	t.circulating.Sub(t.circulating, amount)
	return NewTxResult{TxID: tx.id}, nil
}

func (t *token) checkChangeable() *Error {
	if t.frozen {
		return walletErr("Token %s is frozen", t.id)
	}
	if t.locked {
		return walletErr("Token %s supply is locked", t.id)
	}
	return nil
}

func (s *Server) handleTokenLockSupply(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	if err := p.fee(2); err != nil {
		return nil, err
	}
	if err := w.authorityCheck(t); err != nil {
		return nil, err
	}
	if t.supply != "lockable" {
		return nil, walletErr("Token %s supply is not lockable", t.id)
	}
	if err := t.checkChangeable(); err != nil {
		return nil, err
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "token_lock_supply")
	if err != nil {
		return nil, err
	}
	t.locked = true
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleTokenFreeze(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	unfreezable, err := p.str(2, "is unfreezable")
	if err != nil {
		return nil, err
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}
	if unfreezable != "unfreezable" && unfreezable != "not_unfreezable" {
		return nil, invalidParams("unknown unfreezable value %q", unfreezable)
	}
	if err := w.authorityCheck(t); err != nil {
		return nil, err
	}
	if !t.freezable {
		return nil, walletErr("Token %s is not freezable", t.id)
	}
	if t.frozen {
		return nil, walletErr("Token %s is already frozen", t.id)
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "token_freeze")
	if err != nil {
		return nil, err
	}
	t.frozen, t.unfreezable = true, unfreezable == "unfreezable"
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleTokenUnfreeze(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	if err := p.fee(2); err != nil {
		return nil, err
	}
	if err := w.authorityCheck(t); err != nil {
		return nil, err
	}
	if !t.frozen {
		return nil, walletErr("Token %s is not frozen", t.id)
	}
	if !t.unfreezable {
		return nil, walletErr("Token %s cannot be unfrozen", t.id)
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "token_unfreeze")
	if err != nil {
		return nil, err
	}
	t.frozen = false
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleTokenChangeAuthority(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	auth, err := p.str(2, "authority address")
	if err != nil {
		return nil, err
	}
	if _, verr := types.ValidateAddress(auth, s.hrps.Address); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	if err := p.fee(3); err != nil {
		return nil, err
	}
	if err := w.authorityCheck(t); err != nil {
		return nil, err
	}
	if t.frozen {
		return nil, walletErr("Token %s is frozen", t.id)
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "token_change_authority")
	if err != nil {
		return nil, err
	}
	t.authority = auth
	return NewTxResult{TxID: tx.id}, nil
}

func (s *Server) handleTokenSend(p params) (any, *Error) {
	w, a, err := s.signer(p)
	if err != nil {
		return nil, err
	}
	t, err := s.tokenArg(p, 1)
	if err != nil {
		return nil, err
	}
	dest, err := p.str(2, "address")
	if err != nil {
		return nil, err
	}
	if _, verr := types.ValidateAddress(dest, s.hrps.Address); verr != nil {
		return nil, invalidParams("%v", verr)
	}
	amount, err := p.tokenAmount(3, t.decimals)
	if err != nil {
		return nil, err
	}
	if err := p.fee(4); err != nil {
		return nil, err
	}
	if t.frozen {
		return nil, walletErr("Token %s is frozen", t.id)
	}
	bal := a.tokenBalance(t.id)
	if bal.Cmp(amount) < 0 {
		return nil, walletErr("Not enough tokens: have %s, need %s", formatAmount(bal, t.decimals), formatAmount(amount, t.decimals))
	}
	tx, err := s.spend(w, a, new(big.Int), nil, "token_transfer")
	if err != nil {
		return nil, err
	}
	bal.Sub(bal, amount)
	if owner := w.ownerOf(dest); owner != nil {
		owner.tokenBalance(t.id).Add(owner.tokenBalance(t.id), amount)
		owner.findAddress(dest).used = true
	}
	return NewTxResult{TxID: tx.id}, nil
}
