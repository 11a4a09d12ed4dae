package router

import (
	"encoding/json"
	"sync"

	"github.com/mcpbridge/bridge/internal/hub"
)

// pendingRequest is a single outstanding request awaiting a correlated
// response. done is closed exactly once, by whichever of resolve/reject/
// timeout/disconnect wins the race (spec's "at most once completion"
// universal property).
type pendingRequest struct {
	id       string
	clientID hub.ClientID
	done     chan struct{}
	once     sync.Once
	result   json.RawMessage
	err      error
}

func newPendingRequest(id string, clientID hub.ClientID) *pendingRequest {
	return &pendingRequest{id: id, clientID: clientID, done: make(chan struct{})}
}

// complete resolves the request if it hasn't already been resolved. Returns
// false if the request was already completed by a previous caller.
func (p *pendingRequest) complete(result json.RawMessage, err error) bool {
	won := false
	p.once.Do(func() {
		if err == nil {
			p.result = result
		} else {
			p.err = err
		}
		close(p.done)
		won = true
	})
	return won
}
