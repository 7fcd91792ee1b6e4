package mockd

import (
	"sync"
	"time"
)

// FaultKind selects how a faulted method misbehaves.
type FaultKind string

const (
	// FaultError answers with a JSON-RPC error object.
	FaultError FaultKind = "error"
	// FaultMalformed answers with a body that is not valid JSON.
	FaultMalformed FaultKind = "malformed"
	// FaultHTTP500 answers with HTTP status 500.
	FaultHTTP500 FaultKind = "http500"
	// FaultDelay sleeps before answering normally.
	FaultDelay FaultKind = "delay"
	// FaultNoResult answers with an envelope holding neither result nor error.
	FaultNoResult FaultKind = "no_result"
	// FaultWrongID answers normally but with a different id.
	FaultWrongID FaultKind = "wrong_id"
)

// Fault makes a method misbehave. Times limits how many calls are affected;
// zero means every call until the fault is cleared.
type Fault struct {
	Method  string    `json:"method"`
	Kind    FaultKind `json:"kind"`
	Code    int       `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	DelayMS int       `json:"delay_ms,omitempty"`
	Times   int       `json:"times,omitempty"`
}

func (f Fault) delay() time.Duration {
	return time.Duration(f.DelayMS) * time.Millisecond
}

type faultSet struct {
	mu     sync.Mutex
	faults map[string]*Fault
}

func (fs *faultSet) set(f Fault) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.faults == nil {
		fs.faults = make(map[string]*Fault)
	}
	fs.faults[f.Method] = &f
}

func (fs *faultSet) clear() {
	fs.mu.Lock()
	fs.faults = nil
	fs.mu.Unlock()
}

// take returns the fault armed for method, consuming one use.
func (fs *faultSet) take(method string) (Fault, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.faults[method]
	if !ok {
		return Fault{}, false
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(fs.faults, method)
		}
	}
	return *f, true
}
