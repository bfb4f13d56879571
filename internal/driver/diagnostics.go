// diagnostics.go supplements a point-in-time status report, grounded on
// _examples/petervdpas-goop2/internal/p2p/node.go's DiagSnapshot. spec.md
// itself has no diagnostics operation; this is a read-only addition
// (SPEC_FULL.md §5). Diagnostics is a public facade method called from the
// host's own goroutine, so the snapshot is built on the Driver's loop
// goroutine via diagReq and handed back over a reply channel, the same way
// every other piece of Driver-owned state is only ever touched between
// reads of its input channels (spec I4) — d.listeners.required and
// relay.Relay.status are not safe for a second goroutine to read
// concurrently with onNewListenAddr/onSwarmEvent mutating them.
package driver

import (
	"time"

	"github.com/libp2p/go-libp2p/core/network"

	"github.com/petervdpas/goop2/internal/relay"
)

// ConnDetail describes one open connection for Diagnostics.
type ConnDetail struct {
	PeerID    string
	Addr      string
	Direction string
	Age       time.Duration
	Streams   int
}

// RelayDetail reports one configured relay's current FSM status.
type RelayDetail struct {
	PeerID string
	Addr   string
	Status relay.StatusKind
}

// Diagnostics is a point-in-time snapshot of connections, relay state and
// listener readiness, the Go analogue of the teacher's DiagSnapshot map.
type Diagnostics struct {
	PeerID       string
	ListenAddrs  []string
	Connected    []ConnDetail
	Relays       []RelayDetail
	ListenerDone bool
	RecentLog    []string
}

// diagRequest is posted to the Driver's select loop by Diagnostics; reply
// is buffered by one so the loop's send never blocks on a caller that gave
// up (it can't, currently, but keeps the loop's send unconditional).
type diagRequest struct {
	reply chan Diagnostics
}

// Diagnostics asks the Driver's own goroutine for a snapshot and blocks for
// the reply, or returns a zero Diagnostics if the Driver has already
// stopped (Run returned, stopped closed) rather than hanging forever on a
// loop that will never read diagReq again.
func (d *Driver) Diagnostics() Diagnostics {
	req := diagRequest{reply: make(chan Diagnostics, 1)}

	select {
	case d.diagReq <- req:
	case <-d.stopped:
		return Diagnostics{}
	}

	select {
	case snap := <-req.reply:
		return snap
	case <-d.stopped:
		return Diagnostics{}
	}
}

// buildDiagnostics reads overlay/relay/listener state and must only be
// called from the Driver's own loop goroutine (see diagReq in Run).
func (d *Driver) buildDiagnostics() Diagnostics {
	h := d.overlay.Host()
	now := time.Now()

	var conns []ConnDetail
	for _, pid := range h.Network().Peers() {
		for _, c := range h.Network().ConnsToPeer(pid) {
			conns = append(conns, ConnDetail{
				PeerID:    pid.String(),
				Addr:      c.RemoteMultiaddr().String(),
				Direction: dirString(c.Stat().Direction),
				Age:       now.Sub(c.Stat().Opened).Truncate(time.Second),
				Streams:   len(c.GetStreams()),
			})
		}
	}

	relays := make([]RelayDetail, 0, len(d.relays))
	for peerID, r := range d.relays {
		relays = append(relays, RelayDetail{
			PeerID: peerID.String(),
			Addr:   r.Addr.String(),
			Status: r.Status().Kind,
		})
	}

	addrs := h.Addrs()
	listenAddrs := make([]string, len(addrs))
	for i, a := range addrs {
		listenAddrs[i] = a.String()
	}

	return Diagnostics{
		PeerID:       h.ID().String(),
		ListenAddrs:  listenAddrs,
		Connected:    conns,
		Relays:       relays,
		ListenerDone: d.listeners.Ready(),
		RecentLog:    d.diagLog.Snapshot(),
	}
}

func dirString(dir network.Direction) string {
	switch dir {
	case network.DirInbound:
		return "inbound"
	case network.DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}
