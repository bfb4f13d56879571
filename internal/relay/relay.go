// Package relay implements the per-relay finite state machine described in
// spec §4.3: unreachable / disconnected(n) / connecting(a,b) / connected /
// pending-reservation / relaying. A Relay is owned exclusively by the
// Driver; keyed by the peer identifier parsed from the relay's configured
// address (spec invariant I2 — at most one Relay per peer id, relays never
// added after startup).
package relay

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/petervdpas/goop2/internal/reconnect"
)

var log = logging.Logger("nodecore/relay")

type StatusKind int

const (
	StatusUnreachable StatusKind = iota
	StatusDisconnected
	StatusConnecting
	StatusConnected
	StatusPendingReservation
	StatusRelaying
)

func (k StatusKind) String() string {
	switch k {
	case StatusUnreachable:
		return "unreachable"
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusPendingReservation:
		return "pending-reservation"
	case StatusRelaying:
		return "relaying"
	default:
		return "invalid"
	}
}

// Status is the current state of a Relay's FSM.
type Status struct {
	Kind StatusKind

	// Valid when Kind == StatusDisconnected: the number of consecutive
	// disconnects observed from a Disconnected state.
	Attempts uint8

	// Valid when Kind == StatusConnecting.
	ToldObservedAddr   bool
	LearntObservedAddr bool
}

// Update carries an Identify-protocol observation used to advance a
// Connecting relay toward Connected.
type Update int

const (
	SentObservedAddr Update = iota
	LearntObservedAddrUpdate
)

// Relay is the per-relay record. Initial state is Disconnected(0); terminal
// state is Unreachable.
type Relay struct {
	PeerID peer.ID
	Addr   ma.Multiaddr
	status Status
}

// New constructs a Relay in its initial Disconnected(0) state.
func New(peerID peer.ID, addr ma.Multiaddr) *Relay {
	return &Relay{PeerID: peerID, Addr: addr, status: Status{Kind: StatusDisconnected}}
}

func (r *Relay) Status() Status { return r.status }

func (r *Relay) IsUnreachable() bool { return r.status.Kind == StatusUnreachable }
func (r *Relay) IsConnected() bool   { return r.status.Kind == StatusConnected }
func (r *Relay) IsRelaying() bool    { return r.status.Kind == StatusRelaying }

func (r *Relay) SetUnreachable() {
	log.Infow("relay unreachable", "relay", r.Addr)
	r.status = Status{Kind: StatusUnreachable}
}

// SetDisconnected applies the reconnect policy to decide the next state:
// Unreachable under Never, an incremented Disconnected(n) capped at
// Unreachable once n reaches Attempts.max, or a reset Disconnected(0)
// under Always. The counter only increments when already Disconnected;
// any other status resets to Disconnected(1) on failure (spec §4.3).
func (r *Relay) SetDisconnected(policy reconnect.Policy) {
	switch policy.Kind() {
	case reconnect.Never:
		r.SetUnreachable()
		return
	case reconnect.Attempts:
		attempts := uint8(1)
		if r.status.Kind == StatusDisconnected {
			attempts = r.status.Attempts + 1
		}
		if attempts < policy.Max() {
			r.status = Status{Kind: StatusDisconnected, Attempts: attempts}
		} else {
			r.SetUnreachable()
		}
	case reconnect.Always:
		r.status = Status{Kind: StatusDisconnected, Attempts: 0}
	default:
		r.SetUnreachable()
	}
}

func (r *Relay) SetConnecting() {
	r.status = Status{Kind: StatusConnecting}
}

// UpdateConnecting advances a Connecting relay when both the told and
// learnt observed-address flags are set, it collapses to Connected. No-op
// outside the Connecting state.
func (r *Relay) UpdateConnecting(update Update) {
	if r.status.Kind != StatusConnecting {
		return
	}
	told, learnt := r.status.ToldObservedAddr, r.status.LearntObservedAddr
	switch update {
	case SentObservedAddr:
		if !told {
			log.Infow("told relay address", "relay", r.Addr)
		}
		told = true
	case LearntObservedAddrUpdate:
		if !learnt {
			log.Infow("learnt observed address", "relay", r.Addr)
		}
		learnt = true
	}
	if told && learnt {
		log.Infow("relay connection established", "relay", r.Addr)
		r.status = Status{Kind: StatusConnected}
	} else {
		r.status = Status{Kind: StatusConnecting, ToldObservedAddr: told, LearntObservedAddr: learnt}
	}
}

func (r *Relay) SetPendingReservation() {
	r.status = Status{Kind: StatusPendingReservation}
}

func (r *Relay) SetRelaying() {
	log.Infow("relay ready", "relay", r.Addr)
	r.status = Status{Kind: StatusRelaying}
}
