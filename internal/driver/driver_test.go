package driver

import (
	"context"
	"testing"
	"time"

	"github.com/petervdpas/goop2/internal/config"
	"github.com/petervdpas/goop2/internal/event"
	"github.com/petervdpas/goop2/internal/identity"
	"github.com/petervdpas/goop2/internal/intent"
	"github.com/petervdpas/goop2/internal/nodeid"
	"github.com/petervdpas/goop2/internal/reconnect"
)

const testProtocol = "/nodecore-test/echo/1.0.0"

func newTestDriver(t *testing.T, protocols []string) *Driver {
	t.Helper()
	built := config.Built{
		Identity:     identity.NewRandom(),
		MsgProtocols: protocols,
		ReconnPolicy: reconnect.NewNever(),
	}
	d, err := New(built)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return d
}

func runTestDriver(t *testing.T, d *Driver) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("driver did not shut down")
		}
	})
}

// addressOf returns the wire-form NodeId the test dials d by, combining its
// loopback listen address with its own peer id.
func addressOf(t *testing.T, d *Driver) nodeid.NodeId {
	t.Helper()
	addrs := d.ListenAddrs()
	if len(addrs) == 0 {
		t.Fatal("expected at least one listen address")
	}
	return nodeid.Address(addrs[0] + "/p2p/" + d.LocalPeerID())
}

func waitForEvent(t *testing.T, d *Driver, timeout time.Duration, match func(event.Event) bool) event.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-d.Events():
			if !ok {
				t.Fatal("event channel closed before expected event arrived")
			}
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for expected event")
		}
	}
}

func TestDirectDialAndEchoScenario(t *testing.T) {
	drvA := newTestDriver(t, []string{testProtocol})
	drvB := newTestDriver(t, []string{testProtocol})
	runTestDriver(t, drvA)
	runTestDriver(t, drvB)

	targetB := addressOf(t, drvB)

	drvA.Intents() <- intent.NewDial(targetB)
	waitForEvent(t, drvA, 5*time.Second, func(e event.Event) bool { return e.Kind == event.Connected })

	drvA.Intents() <- intent.NewDirectMessage(targetB, intent.NewRequest(testProtocol, []byte("ping")))

	waitForEvent(t, drvA, 5*time.Second, func(e event.Event) bool { return e.Kind == event.OutboundRequest })

	reqEvent := waitForEvent(t, drvB, 5*time.Second, func(e event.Event) bool { return e.Kind == event.InboundRequest })
	if string(reqEvent.Message.Bytes) != "ping" {
		t.Fatalf("expected ping payload, got %q", reqEvent.Message.Bytes)
	}

	drvB.Intents() <- intent.NewDirectMessage(
		reqEvent.Node,
		intent.NewResponse(testProtocol, []byte("pong"), reqEvent.Message.ID),
	)

	respEvent := waitForEvent(t, drvA, 5*time.Second, func(e event.Event) bool { return e.Kind == event.InboundResponse })
	if string(respEvent.Message.Bytes) != "pong" {
		t.Fatalf("expected pong payload, got %q", respEvent.Message.Bytes)
	}
}

func TestSendUnknownProtocolSurfacesError(t *testing.T) {
	drvA := newTestDriver(t, nil)
	drvB := newTestDriver(t, []string{testProtocol})
	runTestDriver(t, drvA)
	runTestDriver(t, drvB)

	targetB := addressOf(t, drvB)
	drvA.Intents() <- intent.NewDirectMessage(targetB, intent.NewRequest(testProtocol, []byte("ping")))

	waitForEvent(t, drvA, 5*time.Second, func(e event.Event) bool {
		return e.Kind == event.Error
	})
}

func TestCloseDrainsAndClosesEventChannel(t *testing.T) {
	d := newTestDriver(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	d.Intents() <- intent.NewClose()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not exit after Close")
	}

	// Events emitted before the exit (e.g. ListeningOn) stay buffered ahead
	// of the close; the channel must report closed once they are read.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-d.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected event channel closed after driver exit")
		}
	}
}
