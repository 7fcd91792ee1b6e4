// Package rpcclient provides the JSON-RPC 2.0 client used to drive a wallet
// daemon.
//
// A Client keeps a single persistent HTTP/1.1 connection to the daemon and
// serialises calls on it. Every call gets a fresh request id and the
// response must echo it. The response body is read once; the same bytes are
// handed to the Recorder and to the decoder.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	klog "github.com/Klingon-tech/wallet-controller/internal/log"
)

// DefaultTimeout bounds a call when the client was built without one.
const DefaultTimeout = 30 * time.Second

// Exchange is one request/response pair as seen on the wire.
type Exchange struct {
	ID      uint64
	Method  string
	Params  json.RawMessage
	Status  int    // HTTP status, 0 if no response arrived
	Body    []byte // raw response body, nil if none
	Err     error  // call outcome, nil on success
	Started time.Time
	Elapsed time.Duration
}

// Recorder receives every exchange before Call returns.
type Recorder interface {
	Record(Exchange) error
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRecorder attaches a transcript recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client is a JSON-RPC 2.0 HTTP client. It is safe for concurrent use, but
// calls are issued one at a time.
type Client struct {
	endpoint string
	http     *http.Client
	tr       *http.Transport
	timeout  time.Duration
	recorder Recorder

	mu     sync.Mutex // serialises calls on the connection
	nextID uint64
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string, opts ...Option) *Client {
	tr := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     1,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     5 * time.Minute,
	}
	c := &Client{
		endpoint: endpoint,
		tr:       tr,
		http:     &http.Client{Transport: tr},
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithTimeout creates a new RPC client with a custom per-call timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	return New(endpoint, WithTimeout(timeout))
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// CloseIdleConnections drops the persistent connection.
func (c *Client) CloseIdleConnections() {
	c.tr.CloseIdleConnections()
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      uint64          `json:"id"`
}

// errorObject is a JSON-RPC 2.0 error object.
type errorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RPCError is returned when the daemon responds with an error object.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransportError is returned when a call did not produce a well-formed
// response: connection failure, timeout, non-2xx status, malformed JSON or a
// mismatched envelope.
type TransportError struct {
	Method string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("rpc transport %s (http %d): %v", e.Method, e.Status, e.Err)
	}
	return fmt.Sprintf("rpc transport %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Call invokes a JSON-RPC method with positional params and unmarshals the
// result into the provided pointer. If result is nil, the result is
// discarded. A nil params slice is sent as an empty array.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	raw, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &TransportError{Method: method, Status: http.StatusOK, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// CallRaw invokes a method and returns the undecoded result.
func (c *Client) CallRaw(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	ex := Exchange{
		ID:      c.nextID,
		Method:  method,
		Params:  encoded,
		Started: time.Now(),
	}

	result, err := c.roundTrip(ctx, &ex)
	ex.Err = err
	ex.Elapsed = time.Since(ex.Started)

	klog.RPC.Debug().
		Str("method", method).
		Uint64("id", ex.ID).
		Int("status", ex.Status).
		Dur("elapsed", ex.Elapsed).
		Err(err).
		Msg("RPC call")

	if c.recorder != nil {
		if recErr := c.recorder.Record(ex); recErr != nil {
			return nil, errors.Join(err, fmt.Errorf("record transcript: %w", recErr))
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// roundTrip posts one request and decodes the envelope. It fills in the
// status and body of ex as soon as they are known.
func (c *Client) roundTrip(ctx context.Context, ex *Exchange) (json.RawMessage, error) {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  ex.Method,
		Params:  ex.Params,
		ID:      ex.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Method: ex.Method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: ex.Method, Err: err}
	}
	defer resp.Body.Close()
	ex.Status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	ex.Body = data
	if err != nil {
		return nil, &TransportError{Method: ex.Method, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: ex.Method, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	return decodeEnvelope(ex.Method, ex.ID, resp.StatusCode, data)
}

// decodeEnvelope checks a response body and returns its result. A
// well-formed error object is reported even when a result accompanies it.
func decodeEnvelope(method string, id uint64, status int, data []byte) (json.RawMessage, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &TransportError{Method: method, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}

	if rawID, ok := env["id"]; ok && !bytes.Equal(rawID, []byte("null")) {
		if !idMatches(rawID, id) {
			return nil, &TransportError{Method: method, Status: status, Err: fmt.Errorf("response id %s does not match request id %d", rawID, id)}
		}
	}

	result, hasResult := env["result"]
	rawErr, hasErr := env["error"]
	// Some servers send "error": null next to a result.
	if hasErr && bytes.Equal(rawErr, []byte("null")) {
		hasErr = false
	}
	switch {
	case hasErr:
		// An error object wins over any result sent next to it.
		var obj errorObject
		if err := json.Unmarshal(rawErr, &obj); err != nil {
			return nil, &TransportError{Method: method, Status: status, Err: fmt.Errorf("decode error object: %w", err)}
		}
		return nil, &RPCError{Code: obj.Code, Message: obj.Message, Data: obj.Data}
	case hasResult:
		return result, nil
	default:
		return nil, &TransportError{Method: method, Status: status, Err: errors.New("response carries neither result nor error")}
	}
}

// idMatches accepts the request id echoed as a JSON number or as a string
// holding the same decimal number.
func idMatches(raw json.RawMessage, id uint64) bool {
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == id
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return false
	}
	n, err := strconv.ParseUint(str, 10, 64)
	return err == nil && n == id
}
