// Package message implements the multi-protocol request-response behaviour
// of spec §4.7: a map from protocol name to an independent request-response
// exchange, opaque []byte payloads, bounded at 1 MiB for inbound requests
// and 10 MiB for responses. Framing uses length-prefixed varint messages
// (github.com/libp2p/go-msgio), the same primitive go-libp2p itself uses
// for its core protocols — the Go analogue of the Rust codec in
// original_source/rust/src/libp2p/message.rs.
//
// Each inbound request opens its own stream; the stream is held open and
// handed to the Driver as a respchan.Channel until the application sends a
// matching Response (or the node shuts down). Each outbound request opens
// a fresh stream, writes the request, and reads the response off the same
// stream on an independent goroutine — so slow or stalled traffic on one
// protocol can never block delivery of another; there is no shared poll
// loop to monopolize.
package message

import (
	"context"
	"fmt"
	"io"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	msgio "github.com/libp2p/go-msgio"

	"github.com/petervdpas/goop2/internal/respchan"
)

var log = logging.Logger("nodecore/message")

const (
	// MaxRequestSize is the maximum accepted inbound request payload.
	MaxRequestSize = 1 << 20 // 1 MiB
	// MaxResponseSize is the maximum accepted response payload.
	MaxResponseSize = 10 << 20 // 10 MiB
)

// Event is the union of notifications the Manager emits onto its event
// channel; the Driver translates each into the spec §3 Event type.
type Event interface{ isMessageEvent() }

type InboundRequest struct {
	Peer      peer.ID
	Protocol  string
	Bytes     []byte
	RequestID string
	Channel   respchan.Channel
}

type InboundResponse struct {
	Peer      peer.ID
	Protocol  string
	Bytes     []byte
	RequestID string
}

type InboundFailure struct {
	Peer     peer.ID
	Protocol string
	Err      error
}

type OutboundFailure struct {
	Peer     peer.ID
	Protocol string
	Err      error
}

func (InboundRequest) isMessageEvent()  {}
func (InboundResponse) isMessageEvent() {}
func (InboundFailure) isMessageEvent()  {}
func (OutboundFailure) isMessageEvent() {}

// ErrProtocolNotFound is returned when a protocol string has no registered
// behaviour (spec §7: MessageProtocolNotFound).
var ErrProtocolNotFound = fmt.Errorf("message protocol not found")

// Manager owns the set of registered request-response protocols for a
// single host and fans their events onto one channel.
type Manager struct {
	host      host.Host
	protocols map[string]struct{}
	events    chan Event

	mu sync.Mutex
}

// NewManager registers a stream handler for every protocol in protocols.
// Protocol-name validation (must begin with '/', printable ASCII) is the
// Config layer's job (spec §6); Manager trusts already-validated strings.
func NewManager(h host.Host, protocols []string) *Manager {
	m := &Manager{
		host:      h,
		protocols: make(map[string]struct{}, len(protocols)),
		events:    make(chan Event, 64),
	}
	for _, p := range protocols {
		m.protocols[p] = struct{}{}
		h.SetStreamHandler(protocol.ID(p), m.handleInboundStream(p))
	}
	return m
}

// Events returns the channel the Driver drains in its select loop,
// alongside the swarm, intent and self-message channels.
func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) hasProtocol(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.protocols[p]
	return ok
}

// SendRequest opens a new stream to peer on protocol, writes bytes as the
// request frame, and asynchronously waits for the response, publishing an
// InboundResponse or OutboundFailure event when it arrives.
func (m *Manager) SendRequest(ctx context.Context, peerID peer.ID, proto string, bytes []byte) error {
	if !m.hasProtocol(proto) {
		return fmt.Errorf("%w: %s", ErrProtocolNotFound, proto)
	}

	s, err := m.host.NewStream(ctx, peerID, protocol.ID(proto))
	if err != nil {
		return fmt.Errorf("open stream to %s for %s: %w", peerID, proto, err)
	}

	w := msgio.NewVarintWriter(s)
	if err := w.WriteMsg(bytes); err != nil {
		_ = s.Reset()
		return fmt.Errorf("write request to %s for %s: %w", peerID, proto, err)
	}
	_ = s.CloseWrite()

	go m.awaitResponse(s, peerID, proto)
	return nil
}

func (m *Manager) awaitResponse(s network.Stream, peerID peer.ID, proto string) {
	defer s.Close()

	r := msgio.NewVarintReaderSize(s, maxIDFrameSize)
	idBytes, err := r.ReadMsg()
	if err != nil {
		m.events <- OutboundFailure{Peer: peerID, Protocol: proto, Err: fmt.Errorf("read response id: %w", err)}
		return
	}
	requestID := string(idBytes)
	r.ReleaseMsg(idBytes)

	body := msgio.NewVarintReaderSize(s, MaxResponseSize)
	payload, err := body.ReadMsg()
	if err != nil {
		m.events <- OutboundFailure{Peer: peerID, Protocol: proto, Err: fmt.Errorf("read response body: %w", err)}
		return
	}
	defer body.ReleaseMsg(payload)

	out := make([]byte, len(payload))
	copy(out, payload)

	m.events <- InboundResponse{Peer: peerID, Protocol: proto, Bytes: out, RequestID: requestID}
}

const maxIDFrameSize = 256

func (m *Manager) handleInboundStream(proto string) network.StreamHandler {
	return func(s network.Stream) {
		peerID := s.Conn().RemotePeer()

		r := msgio.NewVarintReaderSize(s, MaxRequestSize)
		payload, err := r.ReadMsg()
		if err != nil {
			_ = s.Reset()
			if err != io.EOF {
				m.events <- InboundFailure{Peer: peerID, Protocol: proto, Err: fmt.Errorf("read request: %w", err)}
			}
			return
		}
		body := make([]byte, len(payload))
		copy(body, payload)
		r.ReleaseMsg(payload)

		requestID := uuid.NewString()
		log.Debugw("inbound request", "peer", peerID, "protocol", proto, "id", requestID)

		m.events <- InboundRequest{
			Peer:      peerID,
			Protocol:  proto,
			Bytes:     body,
			RequestID: requestID,
			Channel:   &streamChannel{stream: s, requestID: requestID},
		}
	}
}

// streamChannel implements respchan.Channel over the inbound request's
// still-open stream; take-once semantics are enforced by the respchan
// Table removing the entry before Send is ever called (spec §4.5).
type streamChannel struct {
	stream    network.Stream
	requestID string
}

func (c *streamChannel) Send(bytes []byte) error {
	defer c.stream.Close()

	w := msgio.NewVarintWriter(c.stream)
	if err := w.WriteMsg([]byte(c.requestID)); err != nil {
		_ = c.stream.Reset()
		return fmt.Errorf("write response id: %w", err)
	}
	if err := w.WriteMsg(bytes); err != nil {
		_ = c.stream.Reset()
		return fmt.Errorf("write response body: %w", err)
	}
	return nil
}

func (c *streamChannel) Discard() {
	_ = c.stream.Reset()
}
