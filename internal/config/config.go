// Package config implements the Config consumed once at Driver construction
// (spec §3, §6): identity, message-protocol list, relay-address list,
// reconnect policy, idle-connection timeout. JSON shape and the
// Default/Validate/Load/Save/Ensure idiom follow
// _examples/petervdpas-goop2/internal/config/config.go.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/petervdpas/goop2/internal/identity"
	"github.com/petervdpas/goop2/internal/reconnect"
	"github.com/petervdpas/goop2/internal/util"
)

type Config struct {
	Identity        IdentityConfig `json:"identity"`
	MsgProtocols    []string       `json:"msg_protocols"`
	RelayAddrs      []string       `json:"relay_addrs"`
	ReconnPolicy    PolicyConfig   `json:"reconn_policy"`
	IdleConnTimeout time.Duration  `json:"idle_conn_timeout"`
}

// IdentityConfig mirrors the Identity tagged union (spec §3, §6). Seed is
// left-padded/truncated to 32 bytes by internal/identity; PrivateKey is a
// libp2p-marshaled key, required only for kind "keypair".
type IdentityConfig struct {
	Kind       string `json:"kind"` // "random" | "seed" | "keypair"
	Seed       []byte `json:"seed,omitempty"`
	PrivateKey []byte `json:"private_key,omitempty"`
}

type PolicyConfig struct {
	Kind string `json:"kind"` // "never" | "attempts" | "always"
	Max  uint8  `json:"max,omitempty"`
}

func Default() Config {
	return Config{
		Identity:        IdentityConfig{Kind: "random"},
		MsgProtocols:    []string{},
		RelayAddrs:      []string{},
		ReconnPolicy:    PolicyConfig{Kind: "always"},
		IdleConnTimeout: 5 * time.Minute,
	}
}

func (c *Config) Validate() error {
	switch c.Identity.Kind {
	case "random", "", "seed":
	case "keypair":
		if len(c.Identity.PrivateKey) == 0 {
			return errors.New("identity.private_key is required for kind=keypair")
		}
	default:
		return fmt.Errorf("identity.kind must be random, seed, or keypair, got %q", c.Identity.Kind)
	}

	for _, p := range c.MsgProtocols {
		if err := validateProtocol(p); err != nil {
			return fmt.Errorf("msg_protocols: %w", err)
		}
	}

	switch c.ReconnPolicy.Kind {
	case "never", "always", "", "attempts":
	default:
		return fmt.Errorf("reconn_policy.kind must be never, attempts, or always, got %q", c.ReconnPolicy.Kind)
	}

	if c.IdleConnTimeout < 0 {
		return errors.New("idle_conn_timeout must be >= 0")
	}

	return nil
}

// validateProtocol enforces the overlay's protocol-name rules referenced in
// spec §6: must begin with '/', printable ASCII.
func validateProtocol(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("protocol %q must begin with '/'", p)
	}
	for _, r := range p {
		if r < 0x20 || r > 0x7e {
			return fmt.Errorf("protocol %q must be printable ASCII", p)
		}
	}
	return nil
}

// Built is Config resolved into the types the Driver consumes directly.
type Built struct {
	Identity        identity.Identity
	MsgProtocols    []string
	RelayAddrs      []ma.Multiaddr
	ReconnPolicy    reconnect.Policy
	IdleConnTimeout time.Duration
}

// Build validates c and resolves it into Built. Invalid relay addresses are
// silently dropped (spec §6); every other failure is a construction error
// (spec §7).
func (c Config) Build() (Built, error) {
	if err := c.Validate(); err != nil {
		return Built{}, err
	}

	id, err := buildIdentity(c.Identity)
	if err != nil {
		return Built{}, fmt.Errorf("build identity: %w", err)
	}

	policy, err := buildPolicy(c.ReconnPolicy)
	if err != nil {
		return Built{}, err
	}

	addrs := make([]ma.Multiaddr, 0, len(c.RelayAddrs))
	for _, raw := range c.RelayAddrs {
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}

	return Built{
		Identity:        id,
		MsgProtocols:    c.MsgProtocols,
		RelayAddrs:      addrs,
		ReconnPolicy:    policy,
		IdleConnTimeout: c.IdleConnTimeout,
	}, nil
}

func buildIdentity(c IdentityConfig) (identity.Identity, error) {
	switch c.Kind {
	case "random", "":
		return identity.NewRandom(), nil
	case "seed":
		return identity.NewSeed(c.Seed), nil
	case "keypair":
		secret, err := crypto.UnmarshalPrivateKey(c.PrivateKey)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("unmarshal keypair: %w", err)
		}
		return identity.NewKeypair(secret), nil
	default:
		return identity.Identity{}, fmt.Errorf("unknown identity kind %q", c.Kind)
	}
}

func buildPolicy(c PolicyConfig) (reconnect.Policy, error) {
	switch c.Kind {
	case "never":
		return reconnect.NewNever(), nil
	case "attempts":
		return reconnect.NewAttempts(c.Max), nil
	case "always", "":
		return reconnect.NewAlways(), nil
	default:
		return reconnect.Policy{}, fmt.Errorf("unknown reconn_policy kind %q", c.Kind)
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
