// dial.go implements the dial/disconnect module (spec §4.4), grounded on
// original_source/rust/src/libp2p/inner/dial.rs.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/petervdpas/goop2/internal/intent"
	"github.com/petervdpas/goop2/internal/nodeid"
	"github.com/petervdpas/goop2/internal/overlay"
	"github.com/petervdpas/goop2/internal/reconnect"
	"github.com/petervdpas/goop2/internal/selfmsg"
)

// dialTimeout bounds a single dial attempt; the overlay's dial is treated
// as synchronous in the reference design (spec §5), so this is the Go
// stand-in for the absence of an async cancellation path.
const dialTimeout = 30 * time.Second

// dialNode routes a Dial intent to the relay branch or the ordinary branch
// depending on whether the node is a known relay (spec §4.4).
func (d *Driver) dialNode(node nodeid.NodeId) {
	if peerID, ok := node.ToPeerID(); ok {
		if _, isRelay := d.relays[peerID]; isRelay {
			d.dialRelay(peerID)
			return
		}
	}
	d.dial(node)
}

func (d *Driver) dial(node nodeid.NodeId) {
	info, err := node.ToAddrInfo()
	if err != nil {
		d.notifyError(fmt.Sprintf("peer %s cannot be dialed: %v", node, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	err = overlay.Connect(ctx, d.overlay.Host(), info)
	if err == nil {
		if peerID, ok := node.ToPeerID(); ok {
			delete(d.directDialAttempts, peerID)
		}
		return
	}

	log.Infow("dial peer failed", "peer", node, "error", err)

	// go-libp2p's host.Connect blocks for the dial's final outcome, so
	// there is no separate asynchronous OutgoingConnectionError to
	// distinguish from a synchronous dial failure (see internal/overlay);
	// every error lands here as a recoverable-dial-class failure.
	switch d.reconnPolicy.Kind() {
	case reconnect.Never:
		d.notifyError(fmt.Sprintf("peer %s cannot be dialed: %v", node, err))
	case reconnect.Attempts:
		d.retryDirectDial(node, err)
	case reconnect.Always:
		log.Infow("retry dial peer", "peer", node, "delay", directDialRetryDelay)
		d.sendDialIntent(node, directDialRetryDelay)
	}
}

// retryDirectDial applies reconnect.Attempts(n) to an ordinary dial failure,
// the same counter-then-give-up shape relay.Relay.SetDisconnected applies to
// relays (spec §9's "treat identically to relays" default, recorded in
// DESIGN.md). A node with no resolvable peer id cannot be tracked across
// retries, so it is reported as unreachable immediately.
func (d *Driver) retryDirectDial(node nodeid.NodeId, cause error) {
	peerID, ok := node.ToPeerID()
	if !ok {
		d.notifyError(fmt.Sprintf("peer %s cannot be dialed: %v", node, cause))
		return
	}

	attempts := d.directDialAttempts[peerID] + 1
	if attempts >= d.reconnPolicy.Max() {
		delete(d.directDialAttempts, peerID)
		d.diag("peer %s unreachable after %d attempts", node, attempts)
		d.notifyError(fmt.Sprintf("peer %s unreachable after %d attempts: %v", node, attempts, cause))
		return
	}

	d.directDialAttempts[peerID] = attempts
	d.diag("retry dial peer %s, attempt %d", node, attempts)
	d.sendDialIntent(node, directDialRetryDelay)
}

// dialRelays dials every non-Unreachable relay, triggered by ListenersReady
// (spec §4.8).
func (d *Driver) dialRelays() {
	for peerID, r := range d.relays {
		if r.IsUnreachable() {
			continue
		}
		d.sendDialIntent(nodeid.Peer(peerID.String()), 0)
	}
}

func (d *Driver) dialRelay(peerID peer.ID) {
	r, ok := d.relays[peerID]
	if !ok {
		return
	}
	if r.IsUnreachable() {
		log.Debugw("skipping dial, relay already unreachable", "peer", peerID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	info := peer.AddrInfo{ID: peerID, Addrs: []ma.Multiaddr{r.Addr}}
	err := overlay.Connect(ctx, d.overlay.Host(), info)
	if err == nil {
		r.SetConnecting()
		return
	}

	r.SetDisconnected(d.reconnPolicy)
	if !r.IsUnreachable() {
		d.sendDialIntent(nodeid.Peer(peerID.String()), directDialRetryDelay)
	}
}

// disconnect parses node to a peer id and requests a swarm disconnect
// (spec §4.4). A node without a resolvable peer id is dropped silently
// (debug log).
func (d *Driver) disconnect(node nodeid.NodeId) {
	peerID, ok := node.ToPeerID()
	if !ok {
		log.Debugw("cannot disconnect, unknown peer id", "node", node)
		return
	}
	d.disconnectPeer(peerID)
}

func (d *Driver) disconnectPeer(peerID peer.ID) {
	_ = d.overlay.Host().Network().ClosePeer(peerID)
}

// disconnectAll iterates currently connected peers and disconnects each;
// used during shutdown only (spec §4.4).
func (d *Driver) disconnectAll() {
	for _, c := range d.overlay.Host().Network().Conns() {
		d.disconnectPeer(c.RemotePeer())
	}
}

// sendDialIntent posts a delayed Dial self-message (spec §4.8). The
// reference design sleeps inside the Driver task itself, since it is
// single-threaded and a few seconds of blocking is deemed acceptable; here
// the delay runs in its own goroutine and only the final postSelf touches
// Driver state, so concurrent intents and swarm events keep flowing during
// the wait. Spec §9 explicitly allows substituting a timer for the
// blocking sleep: "none of the observable properties change."
func (d *Driver) sendDialIntent(node nodeid.NodeId, delay time.Duration) {
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		d.postSelf(selfmsg.NewIntent(intent.NewDial(node)))
	}()
}
