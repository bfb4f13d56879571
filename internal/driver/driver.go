// Package driver implements the Driver (spec §4.2): the single long-lived
// task that multiplexes swarm events, host intents and its own
// self-message bus, and exclusively owns every piece of mutable state
// (spec invariant I4). Grounded on
// original_source/rust/src/libp2p/inner/mod.rs's NodeInner and its
// select-loop in start(), adapted to Go's native multi-source select
// instead of a synthesized one (see internal/overlay for why a single
// swarm-event channel still had to be synthesized upstream).
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/petervdpas/goop2/internal/config"
	"github.com/petervdpas/goop2/internal/event"
	"github.com/petervdpas/goop2/internal/intent"
	"github.com/petervdpas/goop2/internal/listener"
	"github.com/petervdpas/goop2/internal/message"
	"github.com/petervdpas/goop2/internal/overlay"
	"github.com/petervdpas/goop2/internal/reconnect"
	"github.com/petervdpas/goop2/internal/relay"
	"github.com/petervdpas/goop2/internal/respchan"
	"github.com/petervdpas/goop2/internal/selfmsg"
	"github.com/petervdpas/goop2/internal/swarmevent"
	"github.com/petervdpas/goop2/internal/util"
)

var log = logging.Logger("nodecore/driver")

// ordinaryReconnectDelay is the short delay for raw connection loss; see
// relayCooldownDelay for the longer circuit-listener variant (spec §4.3).
const ordinaryReconnectDelay = 15 * time.Second

// relayCooldownDelay follows the reference overlay's circuit-relay
// reservation rate limit of one request every two minutes per peer
// (spec §4.3, §9 design notes).
const relayCooldownDelay = 125 * time.Second

// directDialRetryDelay is the delay before retrying a failed ordinary dial
// (under Always or Attempts) or a failed relay dial (spec §4.4).
const directDialRetryDelay = 1 * time.Second

// DefaultChannelBuffer is the bounded depth of the intent and event queues
// (spec §4.1, §5).
const DefaultChannelBuffer = 255

// diagLogCapacity bounds the ring buffer Diagnostics reports recent relay
// and connectivity transitions through, matching the teacher's fixed-size
// diag log (_examples/petervdpas-goop2/internal/p2p/node.go diagMax).
const diagLogCapacity = 200

// Driver owns the state bag of spec §2 exclusively: the overlay, the relay
// table, the listener registry, the response-channel table and the
// reconnect policy. All mutation happens between reads of its three input
// channels (spec I4).
type Driver struct {
	overlay  *overlay.Overlay
	messages *message.Manager

	extEvents chan event.Event
	extIntent chan intent.Intent
	selfCh    chan selfmsg.Message

	// diagReq carries Diagnostics snapshot requests onto the Driver's own
	// select loop, so the read of d.listeners/d.relays happens between
	// queue reads like everything else the Driver owns (spec I4) instead
	// of racing the loop from the facade's goroutine.
	diagReq chan diagRequest
	stopped chan struct{}

	isActive bool

	listeners *listener.Registry
	relays    map[peer.ID]*relay.Relay
	respTable *respchan.Table

	// directDialAttempts tracks consecutive dial failures per peer for
	// reconnect.Attempts(n) on ordinary (non-relay) dials. Unlike d.relays,
	// this set is not fixed at startup: any dialable peer can appear here,
	// so an entry is deleted on success or once it reaches the policy's max
	// rather than kept forever (spec §9, see DESIGN.md).
	directDialAttempts map[peer.ID]uint8

	reconnPolicy reconnect.Policy

	diagLog *util.RingBuffer[string]

	closeOnce sync.Once
}

// New constructs a Driver from a Built config, starting the overlay host
// but not yet the event loop (call Run to start it).
func New(cfg config.Built) (*Driver, error) {
	secret, err := cfg.Identity.PrivateKey()
	if err != nil {
		return nil, fmt.Errorf("derive identity: %w", err)
	}

	ov, err := overlay.Build(secret, cfg.IdleConnTimeout)
	if err != nil {
		return nil, fmt.Errorf("build overlay: %w", err)
	}

	msgMgr := message.NewManager(ov.Host(), cfg.MsgProtocols)

	d := &Driver{
		overlay:            ov,
		messages:           msgMgr,
		extEvents:          make(chan event.Event, DefaultChannelBuffer),
		extIntent:          make(chan intent.Intent, DefaultChannelBuffer),
		selfCh:             make(chan selfmsg.Message, DefaultChannelBuffer),
		diagReq:            make(chan diagRequest),
		stopped:            make(chan struct{}),
		isActive:           true,
		listeners:          listener.NewRegistry(),
		relays:             make(map[peer.ID]*relay.Relay),
		directDialAttempts: make(map[peer.ID]uint8),
		respTable:          respchan.NewTable(),
		reconnPolicy:       cfg.ReconnPolicy,
		diagLog:            util.NewRingBuffer[string](diagLogCapacity),
	}

	// Relay identifiers are derived from relay_addrs once at startup and
	// never added later (spec invariant I2).
	for _, addr := range cfg.RelayAddrs {
		id, err := relayPeerID(addr)
		if err != nil {
			log.Debugw("relay address missing peer id, skipping", "addr", addr, "error", err)
			continue
		}
		d.relays[id] = relay.New(id, addr)
	}

	for _, t := range overlay.RequiredListeners() {
		d.listeners.Require(t)
	}

	return d, nil
}

func relayPeerID(addr ma.Multiaddr) (peer.ID, error) {
	ids := addr.ValuesForProtocol(ma.P_P2P)
	if len(ids) == 0 {
		return "", fmt.Errorf("address has no /p2p id segment")
	}
	return peer.Decode(ids[len(ids)-1])
}

// Intents returns the send half of the intent queue, given to the facade.
func (d *Driver) Intents() chan<- intent.Intent { return d.extIntent }

// Events returns the receive half of the event queue, given to the facade.
func (d *Driver) Events() <-chan event.Event { return d.extEvents }

// LocalPeerID returns this node's own peer id, the Go analogue of the
// teacher's n.Host.ID() (_examples/petervdpas-goop2/internal/p2p/node.go),
// needed by a host to hand out a dialable NodeId for itself out of band.
func (d *Driver) LocalPeerID() string { return d.overlay.Host().ID().String() }

// ListenAddrs returns the textual form of every address currently bound,
// for a host to combine with LocalPeerID into a dialable NodeId.
func (d *Driver) ListenAddrs() []string {
	addrs := d.overlay.Host().Addrs()
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// Run executes the startup sequence and then the Driver's select loop
// until a Close intent (or ctx cancellation) marks the Driver inactive, or
// all three input sources report closed (spec §4.2, §5).
func (d *Driver) Run(ctx context.Context) error {
	if err := d.listen(); err != nil {
		d.notifyError(err.Error())
		close(d.extEvents)
		close(d.stopped)
		return err
	}

	swarmEvents := d.overlay.Events()
	msgEvents := d.messages.Events()

	intentCh := d.extIntent
	selfMsgCh := d.selfCh

	swarmClosed, intentClosed, selfMsgClosed := false, false, false

	for {
		select {
		case e, ok := <-swarmEvents:
			if !ok {
				swarmClosed = true
				swarmEvents = nil
				break
			}
			d.onSwarmEvent(e)

		case e, ok := <-msgEvents:
			if !ok {
				msgEvents = nil
				break
			}
			d.onMessageEvent(e)

		case in, ok := <-intentCh:
			if !ok {
				intentClosed = true
				intentCh = nil
				break
			}
			d.onIntent(in)

		case m, ok := <-selfMsgCh:
			if !ok {
				selfMsgClosed = true
				selfMsgCh = nil
				break
			}
			d.onSelfMessage(m)

		case req := <-d.diagReq:
			req.reply <- d.buildDiagnostics()

		case <-ctx.Done():
			d.onIntent(intent.NewClose())
		}

		// Go channels cannot be half-closed from the receiver side the way
		// Tokio's mpsc::Receiver::close() can; once Close has driven
		// isActive to false, treat both host-facing queues as closed from
		// here on rather than waiting for their (facade-owned) send halves
		// to close, satisfying I5's "no further intents or self-messages
		// are accepted" without requiring the facade to coordinate a
		// channel close on the Driver's behalf.
		if !d.isActive {
			intentClosed, selfMsgClosed = true, true
			intentCh, selfMsgCh = nil, nil
		}

		if (swarmClosed || !d.isActive) && intentClosed && selfMsgClosed {
			break
		}
	}

	log.Infow("finished")
	close(d.extEvents)
	close(d.stopped)
	return nil
}

// notify posts an event to the host, blocking on back-pressure (spec §5).
// Safe to block here: extEvents is drained by the facade's goroutine, never
// by the Driver itself.
func (d *Driver) notify(e event.Event) {
	d.extEvents <- e
}

func (d *Driver) notifyError(cause string) { d.notify(event.ErrorEvent(cause)) }

// diag logs a relay/connectivity transition and retains it in the ring
// buffer Diagnostics reports, mirroring the teacher's diag() helper
// (_examples/petervdpas-goop2/internal/p2p/node.go) without the host's
// separate remote-query protocol, which is out of scope here.
func (d *Driver) diag(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Infow(msg)
	d.diagLog.Push(time.Now().Format("15:04:05") + " " + msg)
}

// postSelf enqueues a self-message. Unlike notify, this cannot block: the
// Driver is the sole reader of selfCh, so a full buffer would deadlock the
// very goroutine that would otherwise drain it. Dropping with a log instead
// of blocking trades a (in practice unreachable at depth 255) lost
// self-message for liveness.
func (d *Driver) postSelf(m selfmsg.Message) {
	select {
	case d.selfCh <- m:
	default:
		log.Debugw("self-message queue full, dropping message")
	}
}
