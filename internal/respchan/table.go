// Package respchan implements the response-channel table (spec §4.5,
// invariant I1): it correlates an inbound request awaiting its outbound
// response with the overlay's one-shot reply handle, keyed by
// (NodeId, protocol, request-id). Owned exclusively by the Driver.
package respchan

import (
	"fmt"

	"github.com/petervdpas/goop2/internal/nodeid"
)

// Channel is a one-shot reply handle: a single-writer, single-reader value
// slot with take semantics. The overlay's per-protocol request-response
// behaviour implements it (internal/message.streamChannel).
type Channel interface {
	// Send delivers the response bytes. Returns an error if the channel
	// was already closed/consumed (the peer disconnected meanwhile).
	Send(bytes []byte) error
	// Discard releases the channel without sending a response, used on
	// shutdown (spec I5) or when a response is never produced.
	Discard()
}

// Key uniquely identifies an inbound request awaiting its outbound response.
type Key struct {
	Node     nodeid.NodeId
	Protocol string
	RequestID string
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %s, %s)", k.Node, k.Protocol, k.RequestID)
}

// Table is not safe for concurrent use; the Driver is its sole mutator
// between queue reads (spec invariant I4).
type Table struct {
	entries map[Key]Channel
}

func NewTable() *Table {
	return &Table{entries: make(map[Key]Channel)}
}

// Insert stores a channel for a newly arrived inbound request.
func (t *Table) Insert(key Key, ch Channel) {
	t.entries[key] = ch
}

// Take removes and returns the channel for key, if present. Removal happens
// before the caller attempts the send, so a failed send never leaves a
// stale entry (spec §4.5).
func (t *Table) Take(key Key) (Channel, bool) {
	ch, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	return ch, ok
}

// Len reports the number of pending entries (spec property P2).
func (t *Table) Len() int { return len(t.entries) }

// DiscardAll releases every pending channel without a response, used during
// shutdown (spec I5, P1).
func (t *Table) DiscardAll() {
	for k, ch := range t.entries {
		ch.Discard()
		delete(t.entries, k)
	}
}
