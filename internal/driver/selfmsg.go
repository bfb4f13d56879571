// selfmsg.go consumes the self-message bus (spec §4.8).
package driver

import (
	"github.com/petervdpas/goop2/internal/selfmsg"
)

func (d *Driver) onSelfMessage(m selfmsg.Message) {
	switch m.Kind {
	case selfmsg.ListenersReady:
		d.dialRelays()
	case selfmsg.RelayConnected:
		d.listenOnRelay(m.RelayPeer)
	case selfmsg.IntentMessage:
		d.onIntent(m.Intent)
	}
}
