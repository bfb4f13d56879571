// Package identity implements the Identity tagged union supplied at
// startup and consumed once to derive the node's libp2p keypair.
package identity

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
)

type Kind int

const (
	Random Kind = iota
	Seed
	Keypair
)

// SeedLen is the expected length of a Seed identity. Shorter seeds are
// left-padded with zeros; longer ones are truncated (spec §6, §8 P-boundary).
const SeedLen = 32

// Identity is immutable once constructed.
type Identity struct {
	kind   Kind
	seed   [SeedLen]byte
	secret crypto.PrivKey
}

func NewRandom() Identity { return Identity{kind: Random} }

// NewSeed builds a Seed identity, left-padding or truncating to SeedLen.
func NewSeed(raw []byte) Identity {
	var s [SeedLen]byte
	if len(raw) >= SeedLen {
		copy(s[:], raw[len(raw)-SeedLen:])
	} else {
		copy(s[SeedLen-len(raw):], raw)
	}
	return Identity{kind: Seed, seed: s}
}

// NewKeypair wraps an already-decoded Ed25519 private key.
func NewKeypair(secret crypto.PrivKey) Identity {
	return Identity{kind: Keypair, secret: secret}
}

func (id Identity) Kind() Kind { return id.kind }

// PrivateKey derives the libp2p private key for this identity. Construction
// errors here become Config construction errors (spec §7).
func (id Identity) PrivateKey() (crypto.PrivKey, error) {
	switch id.kind {
	case Random:
		priv, _, err := crypto.GenerateEd25519Key(nil)
		if err != nil {
			return nil, fmt.Errorf("generate random identity: %w", err)
		}
		return priv, nil
	case Seed:
		priv, _, err := crypto.GenerateEd25519Key(newSeedReader(id.seed))
		if err != nil {
			return nil, fmt.Errorf("derive identity from seed: %w", err)
		}
		return priv, nil
	case Keypair:
		if id.secret == nil {
			return nil, fmt.Errorf("keypair identity missing secret key")
		}
		return id.secret, nil
	default:
		return nil, fmt.Errorf("invalid identity kind")
	}
}

// seedReader is a deterministic io.Reader seeded by a fixed 32-byte value,
// used so Seed([]byte{}) reproducibly yields the all-zero keypair.
type seedReader struct {
	seed [SeedLen]byte
	pos  int
}

func newSeedReader(seed [SeedLen]byte) *seedReader { return &seedReader{seed: seed} }

func (r *seedReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		p[n] = r.seed[r.pos%SeedLen]
		r.pos++
		n++
	}
	return n, nil
}
