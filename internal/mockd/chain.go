package mockd

import (
	"encoding/binary"
	"math/big"

	"github.com/Klingon-tech/wallet-controller/pkg/crypto"
	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

// chainState is the simulated node the daemon is synced with.
type chainState struct {
	height      uint64
	tip         types.Hash
	pools       map[string]*pool
	poolOrder   []string
	delegations map[string]*delegation
	tokens      map[string]*token
	nonce       uint64
}

// owner identifies the wallet account that created a pool or delegation.
type owner struct {
	wallet  string
	account uint32
}

func (o owner) is(w *wallet, a *account) bool {
	return w != nil && o.wallet == w.path && o.account == a.index
}

type pool struct {
	id              string
	owner           owner
	pledge          *big.Int
	balance         *big.Int
	costPerBlock    *big.Int
	marginPerMille  float64
	decommissionKey string
}

type delegation struct {
	id      string
	owner   owner
	poolID  string
	balance *big.Int
}

type token struct {
	id          string
	ticker      string
	decimals    int
	metadataURI string
	authority   string
	// supply is "unlimited", "lockable" or a fixed amount in atoms.
	supply      string
	fixedSupply *big.Int
	freezable   bool
	frozen      bool
	unfreezable bool
	locked      bool
	circulating *big.Int
	nft         bool
}

func newChainState() *chainState {
	return &chainState{
		tip:         crypto.Hash([]byte("genesis")),
		pools:       make(map[string]*pool),
		delegations: make(map[string]*delegation),
		tokens:      make(map[string]*token),
	}
}

// nextID returns a fresh unique 32-byte identifier derived from the tip.
func (c *chainState) nextID(kind string) types.Hash {
	c.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], c.nonce)
	return crypto.HashConcat([]byte(kind), c.tip[:], n[:])
}

// advance appends one block and returns its id.
func (c *chainState) advance() types.Hash {
	c.height++
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], c.height)
	c.tip = crypto.HashConcat(c.tip[:], h[:])
	return c.tip
}

func (c *chainState) bestBlock() BlockInfo {
	return BlockInfo{ID: c.tip.String(), Height: c.height}
}
