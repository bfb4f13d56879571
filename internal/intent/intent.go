// Package intent implements the Intent and OutboundMessage tagged unions:
// host-originated commands pushed onto the intent queue (spec §3, §4.1).
package intent

import "github.com/petervdpas/goop2/internal/nodeid"

type Kind int

const (
	Dial Kind = iota
	Disconnect
	DirectMessage
	Close
)

// Intent is a value type cheap to clone, matching the Rust tagged union
// {Dial(NodeId), Disconnect(NodeId), DirectMessage{peer, message}, Close}.
type Intent struct {
	Kind Kind

	Node    nodeid.NodeId // Dial, Disconnect, DirectMessage (as peer)
	Message OutboundMessage
}

func NewDial(n nodeid.NodeId) Intent       { return Intent{Kind: Dial, Node: n} }
func NewDisconnect(n nodeid.NodeId) Intent { return Intent{Kind: Disconnect, Node: n} }
func NewClose() Intent                     { return Intent{Kind: Close} }
func NewDirectMessage(n nodeid.NodeId, m OutboundMessage) Intent {
	return Intent{Kind: DirectMessage, Node: n, Message: m}
}

func (i Intent) String() string {
	switch i.Kind {
	case Dial:
		return "dial " + i.Node.String()
	case Disconnect:
		return "disconnect " + i.Node.String()
	case DirectMessage:
		return "send " + i.Message.String() + " to " + i.Node.String()
	case Close:
		return "close"
	default:
		return "unknown-intent"
	}
}

// MessageKind distinguishes the two OutboundMessage variants.
type MessageKind int

const (
	Request MessageKind = iota
	Response
)

// OutboundMessage is {Request{protocol, bytes}, Response{protocol, bytes,
// inbound-request-id}} (spec §3).
type OutboundMessage struct {
	Kind     MessageKind
	Protocol string
	Bytes    []byte

	// RequestID is only meaningful for Response: the id of the inbound
	// request this message answers (spec §4.5).
	RequestID string
}

func NewRequest(protocol string, bytes []byte) OutboundMessage {
	return OutboundMessage{Kind: Request, Protocol: protocol, Bytes: bytes}
}

func NewResponse(protocol string, bytes []byte, requestID string) OutboundMessage {
	return OutboundMessage{Kind: Response, Protocol: protocol, Bytes: bytes, RequestID: requestID}
}

func (m OutboundMessage) String() string {
	if m.Kind == Response {
		return "response(" + m.Protocol + ", id=" + m.RequestID + ")"
	}
	return "request(" + m.Protocol + ")"
}
