package oauth

import (
	"context"
	"sync"
)

// pendingRequest is one outstanding interactive sign-in.
type pendingRequest struct {
	state    string
	nonce    string
	verifier string
	done     chan Callback
}

func newPendingRequest(state string) *pendingRequest {
	return &pendingRequest{state: state, done: make(chan Callback, 1)}
}

// inflight is a single slot: at most one pending request per adapter. The
// slot is emptied as soon as a callback is delivered or the caller gives up.
type inflight struct {
	mu  sync.Mutex
	req *pendingRequest
}

func (f *inflight) begin(req *pendingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.req != nil {
		return ErrBusy
	}
	f.req = req
	return nil
}

func (f *inflight) abandon(req *pendingRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.req == req {
		f.req = nil
	}
}

// deliver hands cb to the pending request. A callback for a different state
// leaves the pending request in place.
func (f *inflight) deliver(cb Callback) error {
	f.mu.Lock()
	req := f.req
	if req == nil {
		f.mu.Unlock()
		return ErrNoPendingRequest
	}
	if cb.State != req.state {
		f.mu.Unlock()
		return ErrStateMismatch
	}
	f.req = nil
	f.mu.Unlock()

	req.done <- cb
	return nil
}

func (f *inflight) await(ctx context.Context, req *pendingRequest) (Callback, error) {
	select {
	case cb := <-req.done:
		return cb, nil
	case <-ctx.Done():
		f.abandon(req)
		return Callback{}, ctx.Err()
	}
}
