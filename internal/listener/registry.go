// Package listener tracks which transport listeners are required, which
// have yielded at least one address, and which are circuit-relay listeners
// bound to a specific relay peer (spec §2 component 2, §4.2, §4.6).
package listener

import "github.com/libp2p/go-libp2p/core/peer"

// Type identifies a listener's transport, or a circuit-relay listener bound
// to a specific relay peer.
type Type struct {
	Transport Transport
	RelayPeer peer.ID // valid when Transport == CircuitRelay
}

type Transport int

const (
	TCP Transport = iota
	QUIC
	WebSocket
	CircuitRelay
)

func (t Type) String() string {
	switch t.Transport {
	case TCP:
		return "tcp"
	case QUIC:
		return "quic"
	case WebSocket:
		return "websocket"
	case CircuitRelay:
		return "circuit-relay(" + t.RelayPeer.String() + ")"
	default:
		return "unknown"
	}
}

// Registry is the listener bookkeeping owned exclusively by the Driver.
//
// go-libp2p's network.Notifiee reports listen addresses directly rather
// than through a distinct ListenerId the way rust-libp2p does, so unlike
// the Rust original this Registry classifies each address by inspecting
// its own multiaddr protocol stack (see overlay.classifyListenAddr)
// instead of tracking a listener-id -> Type map. A transport already
// satisfied simply ignores further addresses for it (e.g. a TCP listener
// reporting both a loopback and a LAN address), so no extra bookkeeping
// is needed to get the same one-shot behaviour.
type Registry struct {
	required map[Type]struct{}
	active   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		required: make(map[Type]struct{}),
		active:   make(map[string]struct{}),
	}
}

// Require records a listener type as needed for startup readiness. If its
// bind call fails the caller drops the requirement via Drop so its absence
// does not block readiness (spec §4.2 step 1).
func (r *Registry) Require(t Type) {
	r.required[t] = struct{}{}
}

// Drop removes a listener type from the required set without it ever
// reporting an address (a failed bind call).
func (r *Registry) Drop(t Type) {
	delete(r.required, t)
}

// Ready reports whether the required set has been fully satisfied.
func (r *Registry) Ready() bool { return len(r.required) == 0 }

// Satisfy drops t from the required set, reporting whether it had been
// required (i.e., this NewListenAddr event was the one that satisfied it).
func (r *Registry) Satisfy(t Type) bool {
	if _, ok := r.required[t]; ok {
		delete(r.required, t)
		return true
	}
	return false
}

func (r *Registry) MarkActive(listenerID string) { r.active[listenerID] = struct{}{} }

func (r *Registry) Active() []string {
	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	return out
}

func (r *Registry) ClearActive() {
	r.active = make(map[string]struct{})
}
