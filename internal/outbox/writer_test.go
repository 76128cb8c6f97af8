package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"ratehub/internal/domain"
	"ratehub/internal/storage"
)

func testEvent(t *testing.T) domain.RateEvent {
	t.Helper()
	e, err := domain.NewRateEvent(domain.RawRate{
		Source: "ratehub:n1", Pair: "EUR/USD", Seq: 1, Bid: "1.08450", Ask: "1.08470",
	})
	if err != nil {
		t.Fatalf("构造测试事件失败: %v", err)
	}
	return e
}

func TestWriterPersistsPendingRecord(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(store, zerolog.Nop())

	event := testEvent(t)
	if err := w.Write(context.Background(), nil, domain.EventTypeRate, event); err != nil {
		t.Fatalf("Write 不应报错: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("应写入一条记录, 实际 %d", len(store.inserted))
	}
	rec := store.inserted[0]
	if rec.Status != storage.StatusPending {
		t.Fatalf("新记录状态应为 PENDING, 实际 %s", rec.Status)
	}
	if rec.EventKey != event.EventKey {
		t.Fatalf("event_key 不正确: %q", rec.EventKey)
	}

	var decoded domain.RateEvent
	if err := json.Unmarshal(rec.Payload, &decoded); err != nil {
		t.Fatalf("payload 应为合法 JSON: %v", err)
	}
	if decoded.Pair != event.Pair || decoded.Seq != event.Seq {
		t.Fatalf("payload 内容不正确: %+v", decoded)
	}
}

func TestWriterSwallowsDuplicateEvent(t *testing.T) {
	store := &fakeStore{insertErr: storage.ErrDuplicateEvent}
	w := NewWriter(store, zerolog.Nop())

	if err := w.Write(context.Background(), nil, domain.EventTypeRate, testEvent(t)); err != nil {
		t.Fatalf("重复事件应视为成功: %v", err)
	}
}

func TestWriterPropagatesStoreErrors(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("connection reset")}
	w := NewWriter(store, zerolog.Nop())

	if err := w.Write(context.Background(), nil, domain.EventTypeRate, testEvent(t)); err == nil {
		t.Fatal("存储错误应向上传递")
	}
}

func TestRegistryDuplicateAndRequire(t *testing.T) {
	pub := &fakePublisher{eventType: domain.EventTypeRate}
	if _, err := NewRegistry(pub, &fakePublisher{eventType: domain.EventTypeRate}); err == nil {
		t.Fatal("重复注册同一事件类型应报错")
	}

	registry, err := NewRegistry(pub)
	if err != nil {
		t.Fatalf("构建 registry 失败: %v", err)
	}
	if err := registry.Require(domain.EventTypeRate); err != nil {
		t.Fatalf("已注册的类型不应报错: %v", err)
	}
	if err := registry.Require("UNKNOWN_EVENT"); err == nil {
		t.Fatal("未注册的类型应报错")
	}
}
