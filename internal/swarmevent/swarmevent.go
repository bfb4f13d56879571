// Package swarmevent defines the synthesized swarm-event union the overlay
// layer feeds to the Driver (spec §1, §4.6). rust-libp2p's Swarm implements
// futures::Stream and yields one SwarmEvent enum across every transport,
// behaviour and connection state change; go-libp2p has no equivalent single
// source. The overlay package synthesizes one by fanning network.Notifiee
// callbacks, mDNS discovery notifications and identify completions into a
// single buffered channel of the Event type defined here.
//
// Two events present in the Rust original have no analogue here and are
// intentionally dropped, each noted where it would otherwise appear:
// OutgoingConnectionError folds into the synchronous error return of
// host.Connect (see internal/driver/dial.go), since go-libp2p dials
// block for their final result instead of reporting it asynchronously;
// and the relay behaviour's ReservationReqAccepted is recognized as a
// NewListenAddr event whose address is a circuit-relay address (see
// NewListenAddr's doc comment below).
package swarmevent

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/petervdpas/goop2/internal/listener"
)

type Kind int

const (
	ConnectionEstablished Kind = iota
	ConnectionClosed
	NewListenAddr
	ListenerClosed
	MdnsDiscovered
	IdentifyCompleted
)

// Event is a value type; exactly one field group is meaningful per Kind.
type Event struct {
	Kind Kind

	Peer peer.ID // ConnectionEstablished, ConnectionClosed, MdnsDiscovered, IdentifyCompleted

	// Addr is the address involved: the new or closed listen address for
	// NewListenAddr/ListenerClosed, the discovered peer's address for
	// MdnsDiscovered, or the peer's self-reported observed address (what
	// they believe our address is) for IdentifyCompleted.
	Addr ma.Multiaddr

	// ListenerType is the classification of Addr for NewListenAddr and
	// ListenerClosed, computed by inspecting Addr's own protocol stack
	// (see overlay.classifyListenAddr).
	ListenerType listener.Type
}

func Established(p peer.ID) Event { return Event{Kind: ConnectionEstablished, Peer: p} }
func Closed(p peer.ID) Event      { return Event{Kind: ConnectionClosed, Peer: p} }

// NewListenAddrEvent reports a freshly bound listen address. When addr is a
// circuit-relay address (/p2p-circuit) this is also the Go analogue of the
// Rust relay behaviour's ReservationReqAccepted: go-libp2p's circuitv2
// client transport only completes Listen on such an address once the relay
// has accepted the reservation, so the two events collapse into one here.
func NewListenAddrEvent(addr ma.Multiaddr, t listener.Type) Event {
	return Event{Kind: NewListenAddr, Addr: addr, ListenerType: t}
}

func ListenerClosedEvent(addr ma.Multiaddr, t listener.Type) Event {
	return Event{Kind: ListenerClosed, Addr: addr, ListenerType: t}
}

func MdnsDiscoveredEvent(p peer.ID, addr ma.Multiaddr) Event {
	return Event{Kind: MdnsDiscovered, Peer: p, Addr: addr}
}

// IdentifyCompletedEvent reports that a round of Identify with p finished
// and p reported observedAddr as our address as seen from their side. Unlike
// the Rust identify behaviour, go-libp2p exposes Identify completion as a
// single event rather than split Sent/Received notifications, so the
// Driver's relay Connecting{told, learnt} transition sets both flags at
// once in response to this one event.
func IdentifyCompletedEvent(p peer.ID, observedAddr ma.Multiaddr) Event {
	return Event{Kind: IdentifyCompleted, Peer: p, Addr: observedAddr}
}
