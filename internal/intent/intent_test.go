package intent

import (
	"strings"
	"testing"

	"github.com/petervdpas/goop2/internal/nodeid"
)

func TestIntentStringersMentionNode(t *testing.T) {
	node := nodeid.Peer("abc")

	cases := []Intent{
		NewDial(node),
		NewDisconnect(node),
		NewDirectMessage(node, NewRequest("/echo/1.0.0", []byte("hi"))),
	}
	for _, in := range cases {
		if !strings.Contains(in.String(), node.String()) {
			t.Fatalf("expected %q to mention the node", in.String())
		}
	}
}

func TestCloseIntentHasNoNode(t *testing.T) {
	if NewClose().String() != "close" {
		t.Fatalf("expected close intent to render as \"close\", got %q", NewClose().String())
	}
}

func TestOutboundMessageStringDistinguishesRequestAndResponse(t *testing.T) {
	req := NewRequest("/echo/1.0.0", []byte("hi"))
	resp := NewResponse("/echo/1.0.0", []byte("hi"), "req-1")

	if strings.Contains(req.String(), "response") {
		t.Fatalf("expected request to not mention response, got %q", req.String())
	}
	if !strings.Contains(resp.String(), "req-1") {
		t.Fatalf("expected response to mention its request id, got %q", resp.String())
	}
}
