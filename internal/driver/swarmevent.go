// swarmevent.go implements the swarm-event handler (spec §4.6), grounded on
// original_source/rust/src/libp2p/inner/swarm_event.rs, and the relay
// recovery operational knowledge in
// _examples/petervdpas-goop2/internal/p2p/relay.go (refreshRelay,
// recoverRelay): any unexpected connection or circuit-listener loss for a
// configured relay schedules a reconnect rather than surfacing an error.
package driver

import (
	"fmt"
	"time"

	"github.com/petervdpas/goop2/internal/event"
	"github.com/petervdpas/goop2/internal/listener"
	"github.com/petervdpas/goop2/internal/message"
	"github.com/petervdpas/goop2/internal/nodeid"
	"github.com/petervdpas/goop2/internal/relay"
	"github.com/petervdpas/goop2/internal/respchan"
	"github.com/petervdpas/goop2/internal/selfmsg"
	"github.com/petervdpas/goop2/internal/swarmevent"
)

func (d *Driver) onSwarmEvent(e swarmevent.Event) {
	switch e.Kind {
	case swarmevent.ConnectionEstablished:
		d.notify(event.ConnectedEvent(nodeid.FromPeerID(e.Peer)))

	case swarmevent.ConnectionClosed:
		if r, ok := d.relays[e.Peer]; ok {
			d.diag("relay %s connection closed unexpectedly", e.Peer)
			d.maybeReconnectRelay(r, ordinaryReconnectDelay)
		}
		d.notify(event.DisconnectedEvent(nodeid.FromPeerID(e.Peer)))

	case swarmevent.NewListenAddr:
		d.onNewListenAddr(e)

	case swarmevent.ListenerClosed:
		if e.ListenerType.Transport == listener.CircuitRelay {
			if r, ok := d.relays[e.ListenerType.RelayPeer]; ok {
				d.diag("circuit relay %s closed unexpectedly", e.ListenerType.RelayPeer)
				d.maybeReconnectRelay(r, relayCooldownDelay)
			}
		}

	case swarmevent.MdnsDiscovered:
		d.overlay.Host().Peerstore().AddAddr(e.Peer, e.Addr, addrTTL)

	case swarmevent.IdentifyCompleted:
		d.onIdentifyCompleted(e)
	}
}

func (d *Driver) onNewListenAddr(e swarmevent.Event) {
	wasRequired := d.listeners.Satisfy(e.ListenerType)
	d.listeners.MarkActive(e.Addr.String())
	d.notify(event.ListeningOnEvent(e.Addr.String()))

	if wasRequired && d.listeners.Ready() {
		d.postSelf(selfmsg.NewListenersReady())
	}

	// go-libp2p's circuitv2 client transport only completes Listen once the
	// relay has accepted the reservation, so this NewListenAddr is also the
	// Go analogue of relay::client::Event::ReservationReqAccepted.
	if e.ListenerType.Transport == listener.CircuitRelay {
		if r, ok := d.relays[e.ListenerType.RelayPeer]; ok {
			r.SetRelaying()
			d.diag("relay %s reservation accepted, now relaying", e.ListenerType.RelayPeer)
		}
	}
}

func (d *Driver) onIdentifyCompleted(e swarmevent.Event) {
	r, ok := d.relays[e.Peer]
	if !ok {
		return
	}
	// go-libp2p exposes Identify completion as one event rather than split
	// Sent/Received notifications (see internal/swarmevent), so both flags
	// advance together here.
	r.UpdateConnecting(relay.SentObservedAddr)
	r.UpdateConnecting(relay.LearntObservedAddrUpdate)
	if r.IsConnected() {
		d.postSelf(selfmsg.NewRelayConnected(e.Peer))
	}
}

// maybeReconnectRelay advances r's state on an unexpected disconnect and,
// if it is not yet terminal, schedules a reconnect dial after delay
// (spec §4.3, §4.6).
func (d *Driver) maybeReconnectRelay(r *relay.Relay, delay time.Duration) {
	r.SetDisconnected(d.reconnPolicy)
	if !r.IsUnreachable() {
		d.sendDialIntent(nodeid.Peer(r.PeerID.String()), delay)
	}
}

func (d *Driver) onMessageEvent(e message.Event) {
	switch v := e.(type) {
	case message.InboundRequest:
		sender := nodeid.FromPeerID(v.Peer)
		key := respchan.Key{Node: sender, Protocol: v.Protocol, RequestID: v.RequestID}
		d.respTable.Insert(key, v.Channel)
		d.notify(event.InboundRequestEvent(sender, event.ProtocolMessage{Protocol: v.Protocol, Bytes: v.Bytes, ID: v.RequestID}))

	case message.InboundResponse:
		sender := nodeid.FromPeerID(v.Peer)
		d.notify(event.InboundResponseEvent(sender, event.ProtocolMessage{Protocol: v.Protocol, Bytes: v.Bytes, ID: v.RequestID}))

	case message.InboundFailure:
		d.notifyError(fmt.Sprintf("error while receiving a message from %s: %v", v.Peer, v.Err))

	case message.OutboundFailure:
		d.notifyError(fmt.Sprintf("error while sending a message to %s: %v", v.Peer, v.Err))
	}
}

// addrTTL bounds how long an mDNS-discovered address is retained without a
// fresh announcement (see internal/overlay's analogous constant).
const addrTTL = 2 * time.Minute
