// Package reconnect implements the ReconnectPolicy tagged union governing
// dial-retry behavior for both ordinary peers and configured relays.
package reconnect

type Kind int

const (
	Never Kind = iota
	Attempts
	Always
)

// Policy is immutable after construction.
type Policy struct {
	kind Kind
	max  uint8
}

func NewNever() Policy           { return Policy{kind: Never} }
func NewAlways() Policy          { return Policy{kind: Always} }
func NewAttempts(max uint8) Policy { return Policy{kind: Attempts, max: max} }

func (p Policy) Kind() Kind  { return p.kind }
func (p Policy) Max() uint8  { return p.max }
