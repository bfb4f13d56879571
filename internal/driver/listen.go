package driver

import (
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/petervdpas/goop2/internal/overlay"
)

// errNoListeners is a construction-time error (spec §7): no listener could
// be started at all.
var errNoListeners = errors.New("failed to establish any listener")

// listen checks the startup listeners the overlay already bound during
// overlay.Build and drops any required listener type that never got an
// address, so its absence does not block readiness (spec §4.2 step 1).
// Returns errNoListeners if none were established at all (step 2).
func (d *Driver) listen() error {
	addrs := d.overlay.Host().Network().ListenAddresses()
	if len(addrs) == 0 {
		return errNoListeners
	}

	for _, t := range overlay.RequiredListeners() {
		satisfied := false
		for _, addr := range addrs {
			if overlay.ClassifyListenAddr(addr) == t {
				satisfied = true
				break
			}
		}
		if !satisfied {
			d.listeners.Drop(t)
		}
	}

	return nil
}

// listenOnRelay requests a circuit-relay reservation for peerID, advancing
// its state to PendingReservation (spec §4.2 step 3, §4.3). The
// corresponding Relaying transition happens later, when the resulting
// circuit address arrives as a NewListenAddr swarm event
// (internal/driver/swarmevent.go).
func (d *Driver) listenOnRelay(peerID peer.ID) {
	r, ok := d.relays[peerID]
	if !ok {
		log.Debugw("no relay record for peer", "peer", peerID)
		return
	}
	if !r.IsConnected() {
		log.Debugw("relay not connected, skipping circuit listen", "peer", peerID)
		return
	}

	if err := overlay.ListenOnCircuit(d.overlay.Host(), r.Addr); err != nil {
		log.Debugw("circuit relay listen failed", "peer", peerID, "error", err)
		return
	}
	r.SetPendingReservation()
}
