package fanout

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"ratehub/internal/domain"
)

type fakeConn struct {
	id      string
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = string(m)
	}
	return out
}

func TestRegistrySendsHandshakeOnRegister(t *testing.T) {
	r := NewRegistry("hub-1", zerolog.Nop())
	conn := &fakeConn{id: "c1"}

	r.Register(conn)

	msgs := conn.messages()
	if len(msgs) != 1 || msgs[0] != "Connection Instance: hub-1" {
		t.Fatalf("注册后应收到实例握手消息, 实际 %v", msgs)
	}
}

func TestRegistrySubscriptionsReplaceWholeSet(t *testing.T) {
	r := NewRegistry("hub-1", zerolog.Nop())
	conn := &fakeConn{id: "c1"}
	r.Register(conn)

	r.SetSubscriptions("c1", []string{"EUR/USD", "GBP/USD"})
	if got := len(r.InterestedIn("EUR/USD")); got != 1 {
		t.Fatalf("应有 1 个订阅者, 实际 %d", got)
	}

	r.SetSubscriptions("c1", []string{"USD/JPY"})
	if got := len(r.InterestedIn("EUR/USD")); got != 0 {
		t.Fatalf("订阅应整体替换, EUR/USD 实际仍有 %d 个订阅者", got)
	}
	if got := len(r.InterestedIn("USD/JPY")); got != 1 {
		t.Fatalf("USD/JPY 应有 1 个订阅者, 实际 %d", got)
	}
}

func TestRegistryUnregisterClearsSubscriptions(t *testing.T) {
	r := NewRegistry("hub-1", zerolog.Nop())
	conn := &fakeConn{id: "c1"}
	r.Register(conn)
	r.SetSubscriptions("c1", []string{"EUR/USD"})

	r.Unregister("c1")
	if got := len(r.InterestedIn("EUR/USD")); got != 0 {
		t.Fatalf("注销后不应再有订阅者, 实际 %d", got)
	}
}

func TestBroadcasterSkipsFailingConnections(t *testing.T) {
	r := NewRegistry("hub-1", zerolog.Nop())
	healthy := &fakeConn{id: "healthy"}
	broken := &fakeConn{id: "broken", sendErr: errors.New("connection closed")}
	r.Register(healthy)
	r.Register(broken)
	r.SetSubscriptions("healthy", []string{"EUR/USD"})
	r.SetSubscriptions("broken", []string{"EUR/USD"})

	b := NewBroadcaster(r, zerolog.Nop())
	view := domain.RateView{Pair: "EUR/USD", Seq: 1, Bid: "1.08450", Ask: "1.08470", Timestamp: 1700000000000}
	b.Broadcast(&view)

	msgs := healthy.messages()
	// the first message is the registration handshake
	if len(msgs) != 2 {
		t.Fatalf("健康连接应收到广播, 实际消息数 %d", len(msgs))
	}
}

func TestBroadcasterIgnoresNilAndUnsubscribedViews(t *testing.T) {
	r := NewRegistry("hub-1", zerolog.Nop())
	conn := &fakeConn{id: "c1"}
	r.Register(conn)
	r.SetSubscriptions("c1", []string{"EUR/USD"})

	b := NewBroadcaster(r, zerolog.Nop())
	b.Broadcast(nil)
	b.Broadcast(&domain.RateView{})
	b.Broadcast(&domain.RateView{Pair: "GBP/USD", Seq: 1})

	if msgs := conn.messages(); len(msgs) != 1 {
		t.Fatalf("除握手外不应收到任何消息, 实际 %v", msgs)
	}
}
