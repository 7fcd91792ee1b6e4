package controller

import "sync"

// AccountParam is the first positional parameter of account-scoped calls.
type AccountParam struct {
	Account uint32 `json:"account"`
}

// AccountContext holds the account index a session's calls are scoped to.
// The zero value selects account 0.
type AccountContext struct {
	mu    sync.Mutex
	index uint32
}

// Select makes idx the current account. It always succeeds.
func (a *AccountContext) Select(idx uint32) string {
	a.mu.Lock()
	a.index = idx
	a.mu.Unlock()
	return Success
}

// Index returns the selected account index.
func (a *AccountContext) Index() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index
}

// Current returns the parameter that scopes a call to the selected account.
func (a *AccountContext) Current() AccountParam {
	return AccountParam{Account: a.Index()}
}
