// Package mockd implements a fake wallet RPC daemon.
//
// It speaks the daemon's JSON-RPC 2.0 method vocabulary over HTTP and keeps
// an in-memory model of one open wallet and the chain it is synced with:
// accounts, addresses, UTXOs, staking pools, delegations, tokens and pending
// transactions. Blocks are only produced on request (mock_produce_block).
// Faults can be armed per method to exercise a client's error handling.
package mockd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/wallet-controller/internal/log"
	"github.com/Klingon-tech/wallet-controller/pkg/types"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Config configures a Server.
type Config struct {
	// Addr is the listen address; port 0 picks a free one.
	Addr string
	// Chain is the chain type, which selects the bech32m prefixes.
	Chain string
	// InitialBalance funds account 0 of every created wallet.
	InitialBalance string
	// BlockReward credits the staking pool of each produced block.
	BlockReward string
	// IgnoreShutdown makes the shutdown method a no-op.
	IgnoreShutdown bool
}

// Server is the fake wallet daemon.
type Server struct {
	cfg     Config
	hrps    types.ChainHRPs
	initial *big.Int
	reward  *big.Int

	mu     sync.Mutex
	wallet *wallet
	chain  *chainState

	faults faultSet

	server *http.Server
	ln     net.Listener
	logger zerolog.Logger

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New creates a server. It does not listen until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Chain == "" {
		cfg.Chain = "regtest"
	}
	hrps, err := types.HRPsForChain(cfg.Chain)
	if err != nil {
		return nil, err
	}
	if cfg.InitialBalance == "" {
		cfg.InitialBalance = "0"
	}
	initial, err := parseAmount(cfg.InitialBalance, CoinDecimals)
	if err != nil {
		return nil, fmt.Errorf("initial balance: %w", err)
	}
	if cfg.BlockReward == "" {
		cfg.BlockReward = "2"
	}
	reward, err := parseAmount(cfg.BlockReward, CoinDecimals)
	if err != nil {
		return nil, fmt.Errorf("block reward: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		hrps:     hrps,
		initial:  initial,
		reward:   reward,
		chain:    newChainState(),
		logger:   klog.Mockd,
		shutdown: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
	}
	return s, nil
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Str("chain", s.cfg.Chain).Msg("Wallet RPC listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ShutdownRequested is closed once a shutdown call has been answered.
func (s *Server) ShutdownRequested() <-chan struct{} { return s.shutdown }

// InjectFault arms a fault for a method.
func (s *Server) InjectFault(f Fault) { s.faults.set(f) }

// ClearFaults disarms every fault.
func (s *Server) ClearFaults() { s.faults.clear() }

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	s.logger.Debug().Str("method", req.Method).RawJSON("params", paramsForLog(req.Params)).Msg("Request")

	if f, ok := s.faults.take(req.Method); ok {
		if s.applyFault(w, &req, f) {
			return
		}
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		s.logger.Debug().Str("method", req.Method).Int("code", rpcErr.Code).Str("error", rpcErr.Message).Msg("Request failed")
		writeJSON(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	writeJSON(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})

	if req.Method == "shutdown" && !s.cfg.IgnoreShutdown {
		s.shutdownOnce.Do(func() { close(s.shutdown) })
	}
}

// applyFault writes the faulty answer. It returns false when the request
// should still be served normally.
func (s *Server) applyFault(w http.ResponseWriter, req *Request, f Fault) bool {
	s.logger.Debug().Str("method", req.Method).Str("fault", string(f.Kind)).Msg("Injecting fault")
	switch f.Kind {
	case FaultError:
		code, msg := f.Code, f.Message
		if code == 0 {
			code = CodeWallet
		}
		if msg == "" {
			msg = "injected failure"
		}
		writeJSON(w, Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: msg}, ID: req.ID})
	case FaultMalformed:
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","result":`)
	case FaultHTTP500:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message":"internal server error"}`)
	case FaultNoResult:
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s}`, idOrNull(req.ID))
	case FaultWrongID:
		result, rpcErr := s.dispatch(req)
		writeJSON(w, Response{JSONRPC: "2.0", Result: result, Error: rpcErr, ID: json.RawMessage("987654321")})
	case FaultDelay:
		time.Sleep(f.delay())
		return false
	default:
		return false
	}
	return true
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

func idOrNull(id json.RawMessage) string {
	if len(id) == 0 {
		return "null"
	}
	return string(id)
}

func paramsForLog(p json.RawMessage) []byte {
	if len(p) == 0 {
		return []byte("null")
	}
	return p
}

// params is a positional parameter list.
type params []json.RawMessage

// parseParams splits the request params into positions. Absent or null
// params are an empty list.
func parseParams(req *Request) (params, *Error) {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return nil, nil
	}
	var p params
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return nil, invalidParams("params must be an array: %v", err)
	}
	return p, nil
}

// decode unmarshals position i into v. Missing positions and nulls leave v
// untouched and report false.
func (p params) decode(i int, v any) (bool, *Error) {
	if i >= len(p) || string(p[i]) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(p[i], v); err != nil {
		return false, invalidParams("param %d: %v", i, err)
	}
	return true, nil
}

func (p params) require(i int, what string, v any) *Error {
	ok, err := p.decode(i, v)
	if err != nil {
		return err
	}
	if !ok {
		return invalidParams("missing %s (param %d)", what, i)
	}
	return nil
}

func (p params) str(i int, what string) (string, *Error) {
	var s string
	if err := p.require(i, what, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (p params) amount(i int, decimals int) (*big.Int, *Error) {
	s, rerr := p.str(i, "amount")
	if rerr != nil {
		return nil, rerr
	}
	v, err := parseAmount(s, decimals)
	if err != nil {
		return nil, invalidParams("param %d: %v", i, err)
	}
	return v, nil
}

// fee checks the fee policy object at position i.
func (p params) fee(i int) *Error {
	var f struct {
		InTopXMB *int `json:"in_top_x_mb"`
	}
	if err := p.require(i, "fee policy", &f); err != nil {
		return err
	}
	if f.InTopXMB == nil || *f.InTopXMB <= 0 {
		return invalidParams("fee policy needs a positive in_top_x_mb")
	}
	return nil
}

// accountArg decodes the {"account": N} object at position 0.
func (p params) accountArg() (uint32, *Error) {
	var a struct {
		Account *uint32 `json:"account"`
	}
	if err := p.require(0, "account", &a); err != nil {
		return 0, err
	}
	if a.Account == nil {
		return 0, invalidParams("account object needs an \"account\" field")
	}
	return *a.Account, nil
}
