package relay

import (
	"errors"
	"sync"
)

// Negotiation outcomes. Callers distinguish them with errors.Is; all of
// them surface to HTTP callers as a negotiation failure.
var (
	ErrAvatarAlreadyConnected = errors.New("relay: avatar is already connected; only one avatar connection is allowed per session")
	ErrNegotiationTimeout     = errors.New("relay: avatar negotiation timed out")
	ErrNegotiationCancelled   = errors.New("relay: avatar negotiation cancelled")
	ErrNegotiationFailed      = errors.New("relay: avatar negotiation failed")
)

// negotiation is one pending SDP offer/answer exchange. At most one exists
// per session; it settles exactly once.
type negotiation struct {
	done chan struct{}
	once sync.Once
	sdp  string
	err  error
}

func newNegotiation() *negotiation {
	return &negotiation{done: make(chan struct{})}
}

func (n *negotiation) resolve(sdp string) {
	n.once.Do(func() {
		n.sdp = sdp
		close(n.done)
	})
}

func (n *negotiation) fail(err error) {
	n.once.Do(func() {
		n.err = err
		close(n.done)
	})
}

// settled reports whether the negotiation has already been resolved,
// failed, or cancelled.
func (n *negotiation) settled() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}
