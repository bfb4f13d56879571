// Package nodecore is the facade (spec §4.1): it starts the Driver task and
// hands the host a bounded intent sender and a pull-style event receiver,
// translating host-supplied wire-form node identifiers through
// internal/nodeid without ever exposing the Driver's internals.
package nodecore

import (
	"context"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/goop2/internal/config"
	"github.com/petervdpas/goop2/internal/driver"
	"github.com/petervdpas/goop2/internal/event"
	"github.com/petervdpas/goop2/internal/intent"
	"github.com/petervdpas/goop2/internal/nodeid"
)

var log = logging.Logger("nodecore")

// Node is the host-facing handle returned by New. It owns nothing of the
// Driver's state (spec I4); it only forwards intents in and events out.
type Node struct {
	drv    *driver.Driver
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	closeOnce  sync.Once
	closedSend bool
}

// New builds the overlay and starts the Driver's event loop in its own
// goroutine, returning once construction succeeds or fails — it does not
// wait for the first listener (spec §4.2 happens inside Run).
func New(cfg config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	built, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}

	drv, err := driver.New(built)
	if err != nil {
		return nil, fmt.Errorf("start driver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{drv: drv, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(n.done)
		if err := drv.Run(ctx); err != nil {
			log.Warnw("driver exited with error", "error", err)
		}
	}()

	return n, nil
}

// Connect pushes one Dial intent per node (spec §4.1). Each id is in the
// wire form produced by nodeid.NodeId.String ("peer(...)" or "addr(...)");
// a parse failure is returned to the caller without reaching the Driver.
func (n *Node) Connect(ids []string) error {
	return n.pushPerNode(ids, intent.NewDial)
}

// Disconnect pushes one Disconnect intent per node.
func (n *Node) Disconnect(ids []string) error {
	return n.pushPerNode(ids, intent.NewDisconnect)
}

// SendMessage pushes one DirectMessage intent per node, cloning msg's
// payload for each push since OutboundMessage.Bytes is shared otherwise
// (spec §4.1: "cloning the payload").
func (n *Node) SendMessage(msg intent.OutboundMessage, ids []string) error {
	return n.pushPerNode(ids, func(node nodeid.NodeId) intent.Intent {
		clone := msg
		clone.Bytes = append([]byte(nil), msg.Bytes...)
		return intent.NewDirectMessage(node, clone)
	})
}

// pushPerNode parses every id before pushing anything, so a single bad
// identifier never results in a partial push.
func (n *Node) pushPerNode(ids []string, build func(nodeid.NodeId) intent.Intent) error {
	nodes := make([]nodeid.NodeId, len(ids))
	for i, id := range ids {
		node, err := nodeid.Parse(id)
		if err != nil {
			return fmt.Errorf("node id %q: %w", id, err)
		}
		nodes[i] = node
	}

	for _, node := range nodes {
		if err := n.push(build(node)); err != nil {
			return err
		}
	}
	return nil
}

// push sends a single intent. The Driver never actually closes its end of
// the intent channel (see internal/driver's Run, which synthesizes
// closed-queue semantics internally instead), so the facade tracks its own
// closedSend flag to satisfy "fails only if the intent queue is closed"
// (spec §4.1) rather than risk a send that blocks forever past Close.
func (n *Node) push(in intent.Intent) error {
	n.mu.Lock()
	closed := n.closedSend
	n.mu.Unlock()
	if closed {
		return fmt.Errorf("intent queue is closed")
	}
	n.drv.Intents() <- in
	return nil
}

// Close pushes a Close intent and waits for the Driver's event loop to
// exit, so that by the time Close returns Events() is closed (spec §4.1,
// I5); events emitted before the exit are still buffered and delivered
// before the channel reports closed. Safe to call more than once.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		err = n.push(intent.NewClose())
		n.mu.Lock()
		n.closedSend = true
		n.mu.Unlock()
		n.cancel()
		<-n.done
	})
	return err
}

// Events returns the receive half of the event queue; it yields a closed
// channel (zero value, ok == false) once the Driver has exited and the
// queue is drained (spec §4.1).
func (n *Node) Events() <-chan event.Event {
	return n.drv.Events()
}

// LocalPeerID returns this node's own peer id, so the host can hand out a
// dialable "addr(...)" or "peer(...)" form of itself out of band (spec §4.1
// node identifiers are host-supplied; the facade never invents a discovery
// channel for them).
func (n *Node) LocalPeerID() string { return n.drv.LocalPeerID() }

// ListenAddrs returns the textual multiaddrs currently bound, for a host to
// combine with LocalPeerID into an "addr(.../p2p/<id>)" NodeId.
func (n *Node) ListenAddrs() []string { return n.drv.ListenAddrs() }

// Diagnostics returns a point-in-time snapshot of connections, configured
// relays and listener readiness (SPEC_FULL.md §5, grounded on the teacher's
// DiagSnapshot).
func (n *Node) Diagnostics() driver.Diagnostics { return n.drv.Diagnostics() }
