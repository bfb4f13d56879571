// Package event implements the Event tagged union the Driver emits and the
// host observes (spec §3, §6). Event's Display format is a human-readable
// one-liner used by the bundled CLI and by log output; it is explicitly not
// a stable protocol (spec §6) — hosts parsing events should use the typed
// Kind/fields instead.
package event

import (
	"fmt"

	"github.com/petervdpas/goop2/internal/nodeid"
)

type Kind int

const (
	ListeningOn Kind = iota
	Connected
	Disconnected
	InboundRequest
	InboundResponse
	OutboundRequest
	OutboundResponse
	Error
)

// ProtocolMessage carries the protocol, opaque payload, and correlation id
// shared by both inbound and outbound request/response events.
type ProtocolMessage struct {
	Protocol string
	Bytes    []byte
	// ID is the request-id assigned by the peer that received the
	// request, echoed back on every subsequent response (spec §4.5, §4.6).
	ID string
}

// Event is a value type; exactly one field group is meaningful per Kind.
type Event struct {
	Kind Kind

	Address string        // ListeningOn
	Node    nodeid.NodeId // Connected, Disconnected, InboundRequest/Response (as Sender), OutboundRequest/Response (as Receiver)
	Message ProtocolMessage
	Cause   string // Error
}

func ListeningOnEvent(addr string) Event {
	return Event{Kind: ListeningOn, Address: addr}
}

func ConnectedEvent(n nodeid.NodeId) Event {
	return Event{Kind: Connected, Node: n}
}

func DisconnectedEvent(n nodeid.NodeId) Event {
	return Event{Kind: Disconnected, Node: n}
}

func InboundRequestEvent(sender nodeid.NodeId, msg ProtocolMessage) Event {
	return Event{Kind: InboundRequest, Node: sender, Message: msg}
}

func InboundResponseEvent(sender nodeid.NodeId, msg ProtocolMessage) Event {
	return Event{Kind: InboundResponse, Node: sender, Message: msg}
}

func OutboundRequestEvent(receiver nodeid.NodeId, msg ProtocolMessage) Event {
	return Event{Kind: OutboundRequest, Node: receiver, Message: msg}
}

func OutboundResponseEvent(receiver nodeid.NodeId, msg ProtocolMessage) Event {
	return Event{Kind: OutboundResponse, Node: receiver, Message: msg}
}

func ErrorEvent(cause string) Event {
	return Event{Kind: Error, Cause: cause}
}

// String renders the one-liner described in spec §6.
func (e Event) String() string {
	switch e.Kind {
	case ListeningOn:
		return fmt.Sprintf("listening on %s", e.Address)
	case Connected:
		return fmt.Sprintf("connected %s", e.Node)
	case Disconnected:
		return fmt.Sprintf("disconnected %s", e.Node)
	case InboundRequest:
		return fmt.Sprintf("inbound-request from %s protocol=%s id=%s bytes=%d", e.Node, e.Message.Protocol, e.Message.ID, len(e.Message.Bytes))
	case InboundResponse:
		return fmt.Sprintf("inbound-response from %s protocol=%s id=%s bytes=%d", e.Node, e.Message.Protocol, e.Message.ID, len(e.Message.Bytes))
	case OutboundRequest:
		return fmt.Sprintf("outbound-request to %s protocol=%s bytes=%d", e.Node, e.Message.Protocol, len(e.Message.Bytes))
	case OutboundResponse:
		return fmt.Sprintf("outbound-response to %s protocol=%s id=%s bytes=%d", e.Node, e.Message.Protocol, e.Message.ID, len(e.Message.Bytes))
	case Error:
		return fmt.Sprintf("error: %s", e.Cause)
	default:
		return "unknown-event"
	}
}
