// intent.go implements the intent handler (spec §4.7 closing note / §2
// component 7), grounded on
// original_source/rust/src/libp2p/inner/intent.rs.
package driver

import (
	"github.com/petervdpas/goop2/internal/intent"
)

func (d *Driver) onIntent(in intent.Intent) {
	switch in.Kind {
	case intent.Dial:
		d.dialNode(in.Node)
	case intent.Disconnect:
		d.disconnect(in.Node)
	case intent.DirectMessage:
		d.sendDirectMessage(in.Node, in.Message)
	case intent.Close:
		d.onClose()
	}
}

// onClose implements the Close intent's shutdown sequencing (spec §5):
// disconnect every peer, discard every pending response channel, then mark
// the Driver inactive, so Run treats the intent and self-message queues as
// closed and exits after the current iteration without waiting for the
// swarm stream to close. Listeners are not removed; the overlay host keeps
// its listen addresses bound.
func (d *Driver) onClose() {
	d.closeOnce.Do(func() {
		d.disconnectAll()
		d.respTable.DiscardAll()
		d.isActive = false
	})
}
