package identity

import (
	"bytes"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
)

func TestRandomIdentityProducesDistinctKeys(t *testing.T) {
	a, b := NewRandom(), NewRandom()
	ka, err := a.PrivateKey()
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	kb, err := b.PrivateKey()
	if err != nil {
		t.Fatalf("derive b: %v", err)
	}
	if ka.Equals(kb) {
		t.Fatal("expected two Random identities to produce distinct keys")
	}
}

func TestSeedIdentityIsDeterministic(t *testing.T) {
	seed := []byte("a-fixed-seed-value")
	id1 := NewSeed(seed)
	id2 := NewSeed(seed)

	k1, err := id1.PrivateKey()
	if err != nil {
		t.Fatalf("derive k1: %v", err)
	}
	k2, err := id2.PrivateKey()
	if err != nil {
		t.Fatalf("derive k2: %v", err)
	}
	if !k1.Equals(k2) {
		t.Fatal("expected same seed to deterministically derive the same key")
	}
}

func TestSeedEmptyYieldsAllZeroSeed(t *testing.T) {
	id := NewSeed(nil)
	if id.seed != ([SeedLen]byte{}) {
		t.Fatalf("expected all-zero seed for empty input, got %v", id.seed)
	}
	// Still must derive a usable key deterministically.
	k1, err := id.PrivateKey()
	if err != nil {
		t.Fatalf("derive from zero seed: %v", err)
	}
	k2, err := NewSeed(nil).PrivateKey()
	if err != nil {
		t.Fatalf("derive second from zero seed: %v", err)
	}
	if !k1.Equals(k2) {
		t.Fatal("expected zero seed to be reproducible")
	}
}

func TestSeedShorterThanSeedLenIsLeftPadded(t *testing.T) {
	id := NewSeed([]byte{0xAB})
	var want [SeedLen]byte
	want[SeedLen-1] = 0xAB
	if id.seed != want {
		t.Fatalf("expected left-padded seed, got %v", id.seed)
	}
}

func TestSeedLongerThanSeedLenKeepsTrailingBytes(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, SeedLen+5)
	raw[0] = 0xFF // dropped: only the trailing SeedLen bytes are kept
	id := NewSeed(raw)
	want := raw[len(raw)-SeedLen:]
	if !bytes.Equal(id.seed[:], want) {
		t.Fatalf("expected trailing %d bytes kept, got %v", SeedLen, id.seed)
	}
}

func TestKeypairIdentityWrapsSuppliedKey(t *testing.T) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	id := NewKeypair(priv)
	got, err := id.PrivateKey()
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !got.Equals(priv) {
		t.Fatal("expected keypair identity to return the supplied key unchanged")
	}
}

func TestKeypairIdentityMissingSecretErrors(t *testing.T) {
	var id Identity
	id.kind = Keypair
	if _, err := id.PrivateKey(); err == nil {
		t.Fatal("expected error for keypair identity with no secret")
	}
}
