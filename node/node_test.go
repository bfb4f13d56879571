package nodecore_test

import (
	"testing"
	"time"

	"github.com/petervdpas/goop2/internal/config"
	"github.com/petervdpas/goop2/internal/event"
	"github.com/petervdpas/goop2/internal/intent"
	nodecore "github.com/petervdpas/goop2/node"
)

const testProtocol = "/nodecore-test/echo/1.0.0"

func newTestNode(t *testing.T, protocols []string) *nodecore.Node {
	t.Helper()
	cfg := config.Default()
	cfg.MsgProtocols = protocols
	cfg.ReconnPolicy = config.PolicyConfig{Kind: "never"}

	n, err := nodecore.New(cfg)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() {
		_ = n.Close()
	})
	return n
}

func waitForEvent(t *testing.T, n *nodecore.Node, timeout time.Duration, match func(event.Event) bool) event.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-n.Events():
			if !ok {
				t.Fatal("event channel closed before expected event arrived")
			}
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for expected event")
		}
	}
}

func addressOf(t *testing.T, n *nodecore.Node) string {
	t.Helper()
	addrs := n.ListenAddrs()
	if len(addrs) == 0 {
		t.Fatal("expected at least one listen address")
	}
	return "addr(" + addrs[0] + "/p2p/" + n.LocalPeerID() + ")"
}

func TestConnectAndSendMessageEndToEnd(t *testing.T) {
	a := newTestNode(t, []string{testProtocol})
	b := newTestNode(t, []string{testProtocol})

	targetB := addressOf(t, b)

	if err := a.Connect([]string{targetB}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitForEvent(t, a, 5*time.Second, func(e event.Event) bool { return e.Kind == event.Connected })

	msg := intent.NewRequest(testProtocol, []byte("ping"))
	if err := a.SendMessage(msg, []string{targetB}); err != nil {
		t.Fatalf("send message: %v", err)
	}

	req := waitForEvent(t, b, 5*time.Second, func(e event.Event) bool { return e.Kind == event.InboundRequest })
	if string(req.Message.Bytes) != "ping" {
		t.Fatalf("expected ping payload, got %q", req.Message.Bytes)
	}
}

func TestConnectRejectsMalformedNodeID(t *testing.T) {
	a := newTestNode(t, nil)
	if err := a.Connect([]string{"not-a-valid-id"}); err == nil {
		t.Fatal("expected a local parse error for a malformed node id")
	}
}

func TestConnectParseFailureRejectsWholeBatch(t *testing.T) {
	a := newTestNode(t, nil)
	b := newTestNode(t, nil)
	targetB := addressOf(t, b)

	// The second id is malformed; Connect must fail before dialing the first
	// (every id is parsed up front, spec §4.1).
	if err := a.Connect([]string{targetB, "not-a-valid-id"}); err == nil {
		t.Fatal("expected an error for the malformed second id")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestNode(t, nil)
	if err := a.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	// Events emitted before Close (e.g. ListeningOn) stay buffered ahead of
	// the close; the channel must report closed once they are read.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-a.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected event channel closed after Close")
		}
	}
}
