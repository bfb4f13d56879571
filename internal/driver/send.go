// send.go implements the send module (spec §4.5), grounded on
// original_source/rust/src/libp2p/inner/send.rs.
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/petervdpas/goop2/internal/event"
	"github.com/petervdpas/goop2/internal/intent"
	"github.com/petervdpas/goop2/internal/message"
	"github.com/petervdpas/goop2/internal/nodeid"
	"github.com/petervdpas/goop2/internal/respchan"
)

// sendDirectMessage dispatches a DirectMessage intent's OutboundMessage,
// either as a Request (new outbound stream) or a Response (answering a
// stored response channel) (spec §4.5).
func (d *Driver) sendDirectMessage(node nodeid.NodeId, msg intent.OutboundMessage) {
	switch msg.Kind {
	case intent.Request:
		d.sendRequest(node, msg)
	case intent.Response:
		d.sendResponse(node, msg)
	}
}

func (d *Driver) sendRequest(node nodeid.NodeId, msg intent.OutboundMessage) {
	peerID, ok := node.ToPeerID()
	if !ok {
		d.notifyError(fmt.Sprintf("address %s is invalid", node))
		return
	}

	// Bounded the same way dial.go bounds its own host.Connect call: an
	// unconnected peer makes SendRequest dial first (message.go), and
	// NewStream/dial run on this goroutine, so an unbounded context would
	// stall the whole select loop for the dial's duration (spec §5).
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := d.messages.SendRequest(ctx, peerID, msg.Protocol, msg.Bytes); err != nil {
		if errors.Is(err, message.ErrProtocolNotFound) {
			d.notifyError(fmt.Sprintf("message protocol %s was not found", msg.Protocol))
		} else {
			d.notifyError(err.Error())
		}
		return
	}

	d.notify(event.OutboundRequestEvent(node, event.ProtocolMessage{Protocol: msg.Protocol, Bytes: msg.Bytes}))
}

func (d *Driver) sendResponse(node nodeid.NodeId, msg intent.OutboundMessage) {
	key := respchan.Key{Node: node, Protocol: msg.Protocol, RequestID: msg.RequestID}

	// Removal happens before the send so a failed send never leaves a
	// stale entry (spec §4.5); no retry on response-channel errors.
	ch, ok := d.respTable.Take(key)
	if !ok {
		d.notifyError(fmt.Sprintf("response channel for %s was not found", key))
		return
	}

	if err := ch.Send(msg.Bytes); err != nil {
		d.notifyError(fmt.Sprintf("response channel for %s is closed: %v", key, err))
		return
	}

	d.notify(event.OutboundResponseEvent(node, event.ProtocolMessage{Protocol: msg.Protocol, Bytes: msg.Bytes, ID: msg.RequestID}))
}
