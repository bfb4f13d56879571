// Package nodeid implements the NodeId tagged union used to address peers
// either by their stable cryptographic identifier or by a multi-layered
// network address that may or may not embed one.
package nodeid

import (
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Kind distinguishes the two NodeId variants.
type Kind int

const (
	KindPeer Kind = iota
	KindAddress
)

// NodeId is a value type: comparable, hashable (via String), cheap to clone.
type NodeId struct {
	kind Kind
	peer string // base-58 peer id, valid when kind == KindPeer
	addr string // textual multiaddr, valid when kind == KindAddress
}

// Peer constructs a NodeId from a peer id string without validating it.
func Peer(peerID string) NodeId { return NodeId{kind: KindPeer, peer: peerID} }

// Address constructs a NodeId from a textual multiaddr without validating it.
func Address(addr string) NodeId { return NodeId{kind: KindAddress, addr: addr} }

// FromPeerID constructs a NodeId from a parsed libp2p peer.ID.
func FromPeerID(id peer.ID) NodeId { return Peer(id.String()) }

// FromPublicKey derives a NodeId from a public key, per the original
// acup2p PublicKey::Ed25519 conversion path.
func FromPublicKey(pub crypto.PubKey) (NodeId, error) {
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return NodeId{}, fmt.Errorf("derive peer id from public key: %w", err)
	}
	return FromPeerID(id), nil
}

func (n NodeId) Kind() Kind      { return n.kind }
func (n NodeId) IsPeer() bool    { return n.kind == KindPeer }
func (n NodeId) IsAddress() bool { return n.kind == KindAddress }

// String renders the wire form used by host CLIs and log output:
// peer(<peer-id>) or addr(<multiaddr>).
func (n NodeId) String() string {
	switch n.kind {
	case KindPeer:
		return "peer(" + n.peer + ")"
	case KindAddress:
		return "addr(" + n.addr + ")"
	default:
		return "<invalid-node-id>"
	}
}

// Parse decodes the textual wire forms "peer(...)" and "addr(...)".
// Parsing failures are returned to the caller without reaching the Driver,
// matching the facade's contract in spec §4.1.
func Parse(text string) (NodeId, error) {
	switch {
	case strings.HasPrefix(text, "peer(") && strings.HasSuffix(text, ")"):
		id := text[len("peer(") : len(text)-1]
		if _, err := peer.Decode(id); err != nil {
			return NodeId{}, fmt.Errorf("parse peer id %q: %w", id, err)
		}
		return Peer(id), nil
	case strings.HasPrefix(text, "addr(") && strings.HasSuffix(text, ")"):
		addr := text[len("addr(") : len(text)-1]
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return NodeId{}, fmt.Errorf("parse multiaddr %q: %w", addr, err)
		}
		return Address(addr), nil
	default:
		return NodeId{}, fmt.Errorf("unrecognized node id form %q (want peer(...) or addr(...))", text)
	}
}

// ToPeerID resolves the NodeId to a libp2p peer.ID. For KindAddress this
// extracts the trailing /p2p/<peer-id> component if present.
func (n NodeId) ToPeerID() (peer.ID, bool) {
	switch n.kind {
	case KindPeer:
		id, err := peer.Decode(n.peer)
		if err != nil {
			return "", false
		}
		return id, true
	case KindAddress:
		a, err := ma.NewMultiaddr(n.addr)
		if err != nil {
			return "", false
		}
		return peerIDFromMultiaddr(a)
	default:
		return "", false
	}
}

// ToAddrInfo resolves a KindAddress NodeId into a dialable peer.AddrInfo.
// KindPeer NodeIds have no known address and dial by peer id alone,
// relying on the peerstore / DHT / relay reservations already present.
func (n NodeId) ToAddrInfo() (peer.AddrInfo, error) {
	switch n.kind {
	case KindPeer:
		id, err := peer.Decode(n.peer)
		if err != nil {
			return peer.AddrInfo{}, err
		}
		return peer.AddrInfo{ID: id}, nil
	case KindAddress:
		a, err := ma.NewMultiaddr(n.addr)
		if err != nil {
			return peer.AddrInfo{}, err
		}
		return peer.AddrInfoFromP2pAddr(a)
	default:
		return peer.AddrInfo{}, fmt.Errorf("invalid node id")
	}
}

func peerIDFromMultiaddr(a ma.Multiaddr) (peer.ID, bool) {
	val, err := a.ValueForProtocol(ma.P_P2P)
	if err != nil {
		return "", false
	}
	id, err := peer.Decode(val)
	if err != nil {
		return "", false
	}
	return id, true
}
