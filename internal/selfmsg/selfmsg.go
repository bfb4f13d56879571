// Package selfmsg implements the Driver's internal self-message bus (spec
// §4.8): deferred or internally-originated work decoupled from the swarm
// and from the host's intent queue.
package selfmsg

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/petervdpas/goop2/internal/intent"
)

type Kind int

const (
	ListenersReady Kind = iota
	RelayConnected
	IntentMessage
)

// Message is a value type posted onto the self-message channel.
type Message struct {
	Kind Kind

	RelayPeer peer.ID // RelayConnected
	Intent    intent.Intent
}

func NewListenersReady() Message { return Message{Kind: ListenersReady} }
func NewRelayConnected(p peer.ID) Message {
	return Message{Kind: RelayConnected, RelayPeer: p}
}
func NewIntent(i intent.Intent) Message {
	return Message{Kind: IntentMessage, Intent: i}
}
