package relay

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/petervdpas/goop2/internal/reconnect"
)

func testPeerID(t *testing.T) peer.ID {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("derive peer id: %v", err)
	}
	return id
}

func testAddr(t *testing.T) ma.Multiaddr {
	t.Helper()
	addr, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	if err != nil {
		t.Fatalf("parse multiaddr: %v", err)
	}
	return addr
}

func TestNewRelayStartsDisconnectedZero(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	st := r.Status()
	if st.Kind != StatusDisconnected || st.Attempts != 0 {
		t.Fatalf("expected Disconnected(0), got %+v", st)
	}
}

func TestConnectingCollapsesToConnectedOnBothFlags(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	r.SetConnecting()

	r.UpdateConnecting(SentObservedAddr)
	if r.IsConnected() {
		t.Fatal("should not be connected after only one flag")
	}

	r.UpdateConnecting(LearntObservedAddrUpdate)
	if !r.IsConnected() {
		t.Fatalf("expected Connected after both flags, got %v", r.Status().Kind)
	}
}

func TestUpdateConnectingIsNoopOutsideConnecting(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	r.UpdateConnecting(SentObservedAddr)
	if r.Status().Kind != StatusDisconnected {
		t.Fatalf("expected unchanged Disconnected state, got %v", r.Status().Kind)
	}
}

func TestFullHappyPathToRelaying(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	r.SetConnecting()
	r.UpdateConnecting(SentObservedAddr)
	r.UpdateConnecting(LearntObservedAddrUpdate)
	if !r.IsConnected() {
		t.Fatal("expected Connected")
	}
	r.SetPendingReservation()
	if r.Status().Kind != StatusPendingReservation {
		t.Fatalf("expected PendingReservation, got %v", r.Status().Kind)
	}
	r.SetRelaying()
	if !r.IsRelaying() {
		t.Fatalf("expected Relaying, got %v", r.Status().Kind)
	}
}

func TestSetDisconnectedUnderNeverGoesUnreachableImmediately(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	r.SetDisconnected(reconnect.NewNever())
	if !r.IsUnreachable() {
		t.Fatalf("expected Unreachable under Never, got %v", r.Status().Kind)
	}
}

func TestSetDisconnectedUnderAlwaysResetsCounter(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	policy := reconnect.NewAlways()
	r.SetDisconnected(policy)
	r.SetDisconnected(policy)
	st := r.Status()
	if st.Kind != StatusDisconnected || st.Attempts != 0 {
		t.Fatalf("expected Disconnected(0) under Always, got %+v", st)
	}
}

func TestSetDisconnectedUnderAttemptsGoesUnreachableAtMax(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	policy := reconnect.NewAttempts(2)

	r.SetDisconnected(policy) // Disconnected(0) -> Disconnected(1)
	if st := r.Status(); st.Kind != StatusDisconnected || st.Attempts != 1 {
		t.Fatalf("expected Disconnected(1), got %+v", st)
	}

	r.SetDisconnected(policy) // Disconnected(1) -> attempts=2 >= max(2) -> Unreachable
	if !r.IsUnreachable() {
		t.Fatalf("expected Unreachable once attempts reach max, got %v", r.Status().Kind)
	}
}

func TestSetDisconnectedUnderAttemptsZeroIsTerminalOnFirstDisconnect(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	r.SetDisconnected(reconnect.NewAttempts(0))
	if !r.IsUnreachable() {
		t.Fatalf("expected Unreachable immediately with max=0, got %v", r.Status().Kind)
	}
}

func TestSetDisconnectedFromNonDisconnectedResetsToOne(t *testing.T) {
	r := New(testPeerID(t), testAddr(t))
	r.SetConnecting()
	r.SetDisconnected(reconnect.NewAttempts(5))
	st := r.Status()
	if st.Kind != StatusDisconnected || st.Attempts != 1 {
		t.Fatalf("expected Disconnected(1) after failure from Connecting, got %+v", st)
	}
}
