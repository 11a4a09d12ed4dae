package hub

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mcpbridge/bridge/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCorrelator struct {
	mu           sync.Mutex
	resolved     []string
	disconnected []ClientID
}

func (f *fakeCorrelator) Resolve(clientID ClientID, env *wire.Envelope) bool {
	return false
}

func (f *fakeCorrelator) ClientDisconnected(id ClientID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, id)
}

func (f *fakeCorrelator) disconnectedIDs() []ClientID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ClientID, len(f.disconnected))
	copy(out, f.disconnected)
	return out
}

func startTestHub(t *testing.T) (*Hub, *fakeCorrelator) {
	t.Helper()
	h := New("127.0.0.1", 0, nil)
	corr := &fakeCorrelator{}
	h.SetCorrelator(corr)

	ctx, cancel := context.WithCancel(context.Background())
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(cancel)
	return h, corr
}

func dialHub(t *testing.T, h *Hub) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", h.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// pollUntil retries fn until it returns true or the deadline elapses.
func pollUntil(t *testing.T, timeout time.Duration, fn func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fn()
}

func TestHub_ConnectBecomesActive(t *testing.T) {
	h, _ := startTestHub(t)
	dialHub(t, h)

	ok := pollUntil(t, time.Second, func() bool {
		return len(h.GetConnectedClients()) == 1
	})
	if !ok {
		t.Fatal("expected one connected client")
	}

	clients := h.GetConnectedClients()
	if !clients[0].IsActive {
		t.Fatal("first connected client should be active")
	}
	active, ok := h.ActiveClient()
	if !ok || active != clients[0].ID {
		t.Fatalf("ActiveClient() = %v, %v, want %v, true", active, ok, clients[0].ID)
	}
}

// TestHub_ActiveClientUniqueness is the universal "active-client uniqueness"
// property: exactly one client is ever marked active among several
// connected at once.
func TestHub_ActiveClientUniqueness(t *testing.T) {
	h, _ := startTestHub(t)
	dialHub(t, h)
	dialHub(t, h)
	dialHub(t, h)

	pollUntil(t, time.Second, func() bool {
		return len(h.GetConnectedClients()) == 3
	})

	activeCount := 0
	for _, c := range h.GetConnectedClients() {
		if c.IsActive {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("active client count = %d, want 1", activeCount)
	}
}

// TestHub_RegistrationRewritesIdentity is scenario S5: a registration
// message replaces the address-derived id with the client-supplied one.
func TestHub_RegistrationRewritesIdentity(t *testing.T) {
	h, _ := startTestHub(t)
	conn := dialHub(t, h)

	pollUntil(t, time.Second, func() bool {
		return len(h.GetConnectedClients()) == 1
	})
	before := h.GetConnectedClients()[0].ID

	reg := wire.Envelope{
		Type:     wire.KindRegistration,
		ClientID: "unity-editor-main",
		ClientInfo: &wire.ClientInfo{
			ProductName: "Unity",
			ProjectPath: "/srv/project",
		},
	}
	body, err := reg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := conn.Write(append(body, '\n')); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ok := pollUntil(t, time.Second, func() bool {
		clients := h.GetConnectedClients()
		return len(clients) == 1 && clients[0].ID == ClientID("unity-editor-main")
	})
	if !ok {
		t.Fatalf("expected rewritten id, got %+v", h.GetConnectedClients())
	}

	clients := h.GetConnectedClients()
	if clients[0].ID == before {
		t.Fatal("id was not rewritten")
	}
	if clients[0].Info == nil || clients[0].Info.ProductName != "Unity" {
		t.Fatalf("client info not recorded: %+v", clients[0].Info)
	}
}

// TestHub_DisconnectPromotesNextAndIsolatesOthers covers scenario S3
// (disconnect mid-session) plus the "disconnect isolation" universal
// property: only the disconnecting client's requests are rejected, and the
// next-oldest connection is promoted active.
func TestHub_DisconnectPromotesNextAndIsolatesOthers(t *testing.T) {
	h, corr := startTestHub(t)
	firstConn := dialHub(t, h)
	dialHub(t, h)

	pollUntil(t, time.Second, func() bool {
		return len(h.GetConnectedClients()) == 2
	})
	clients := h.GetConnectedClients()
	firstID, secondID := clients[0].ID, clients[1].ID

	_ = firstConn.Close()

	ok := pollUntil(t, time.Second, func() bool {
		active, ok := h.ActiveClient()
		return ok && active == secondID
	})
	if !ok {
		active, _ := h.ActiveClient()
		t.Fatalf("active client = %v, want %v promoted", active, secondID)
	}

	ok = pollUntil(t, time.Second, func() bool {
		ids := corr.disconnectedIDs()
		return len(ids) == 1 && ids[0] == firstID
	})
	if !ok {
		t.Fatalf("correlator.ClientDisconnected not called with %v: got %v", firstID, corr.disconnectedIDs())
	}
}

func TestHub_SetActiveClientOverride(t *testing.T) {
	h, _ := startTestHub(t)
	dialHub(t, h)
	dialHub(t, h)

	pollUntil(t, time.Second, func() bool {
		return len(h.GetConnectedClients()) == 2
	})
	clients := h.GetConnectedClients()
	target := clients[1].ID

	if err := h.SetActiveClient(target); err != nil {
		t.Fatalf("SetActiveClient: %v", err)
	}
	active, ok := h.ActiveClient()
	if !ok || active != target {
		t.Fatalf("ActiveClient() = %v, %v, want %v", active, ok, target)
	}

	if err := h.SetActiveClient(ClientID("no-such-client")); err != ErrUnknownClient {
		t.Fatalf("SetActiveClient(unknown) = %v, want ErrUnknownClient", err)
	}
}

func TestHub_MalformedEnvelopeDoesNotCrash(t *testing.T) {
	h, _ := startTestHub(t)
	conn := dialHub(t, h)

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := conn.Write([]byte(`{"command":"ping.check","id":"1"}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	pollUntil(t, time.Second, func() bool {
		return len(h.GetConnectedClients()) == 1
	})
}
