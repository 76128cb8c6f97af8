package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"ratehub/internal/domain"
	"ratehub/internal/outbox"
	"ratehub/internal/sequencer"
	"ratehub/internal/storage"
)

// fakeTx covers only the transaction surface the ingestion path touches.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeIngestStore aggregates pair, sequence, and outbox persistence the
// same way the durable store does.
type fakeIngestStore struct {
	tx        *fakeTx
	pairs     map[string]storage.AllowedPair
	created   []string
	seq       uint64
	inserted  []storage.OutboxRecord
	insertErr error
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{tx: &fakeTx{}, pairs: make(map[string]storage.AllowedPair)}
}

func (f *fakeIngestStore) Begin(context.Context) (pgx.Tx, error) { return f.tx, nil }

func (f *fakeIngestStore) FindPair(_ context.Context, _ pgx.Tx, pair string) (storage.AllowedPair, bool, error) {
	p, ok := f.pairs[pair]
	return p, ok, nil
}

func (f *fakeIngestStore) CreatePair(_ context.Context, _ pgx.Tx, pair string) error {
	f.created = append(f.created, pair)
	f.pairs[pair] = storage.AllowedPair{Pair: pair, IsActive: true}
	return nil
}

func (f *fakeIngestStore) SeedSequence(context.Context, pgx.Tx, string) error { return nil }

func (f *fakeIngestStore) IncrementSequence(context.Context, pgx.Tx, string) (uint64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeIngestStore) InsertOutbox(_ context.Context, _ pgx.Tx, rec storage.OutboxRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeIngestStore) ClaimBatch(context.Context, int, time.Time) ([]storage.OutboxRecord, error) {
	return nil, nil
}

func (f *fakeIngestStore) SaveResult(context.Context, storage.OutboxRecord) error { return nil }

func (f *fakeIngestStore) ReclaimStuck(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeIngestStore) CountByStatus(context.Context, storage.OutboxStatus) (int64, error) {
	return 0, nil
}

func newTestService(store *fakeIngestStore) *RateService {
	seq := sequencer.New(store, zerolog.Nop())
	writer := outbox.NewWriter(store, zerolog.Nop())
	return NewRateService(store, seq, writer, "ratehub:test", zerolog.Nop())
}

func TestCreateRateEventCommitsOutboxRecord(t *testing.T) {
	store := newFakeIngestStore()
	svc := newTestService(store)

	if err := svc.CreateRateEvent(context.Background(), "EUR/USD", "1.08450", "1.08470"); err != nil {
		t.Fatalf("CreateRateEvent 不应报错: %v", err)
	}

	if !store.tx.committed {
		t.Fatal("事务应已提交")
	}
	if len(store.created) != 1 || store.created[0] != "EUR/USD" {
		t.Fatalf("首次出现的货币对应被自动创建: %v", store.created)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("应写入一条 outbox 记录, 实际 %d", len(store.inserted))
	}

	var event domain.RateEvent
	if err := json.Unmarshal(store.inserted[0].Payload, &event); err != nil {
		t.Fatalf("payload 应为合法事件: %v", err)
	}
	if event.Seq != 1 || event.Pair != "EUR/USD" || event.Source != "ratehub:test" {
		t.Fatalf("事件内容不正确: %+v", event)
	}
	if event.EventKey != "ratehub:test:EUR/USD:1" {
		t.Fatalf("eventKey 不正确: %q", event.EventKey)
	}
}

func TestCreateRateEventSequencesPerPair(t *testing.T) {
	store := newFakeIngestStore()
	svc := newTestService(store)

	for i := 0; i < 3; i++ {
		store.tx = &fakeTx{}
		if err := svc.CreateRateEvent(context.Background(), "EUR/USD", "1.08450", "1.08470"); err != nil {
			t.Fatalf("第 %d 次提交不应报错: %v", i+1, err)
		}
	}

	var last domain.RateEvent
	if err := json.Unmarshal(store.inserted[2].Payload, &last); err != nil {
		t.Fatalf("payload 应为合法事件: %v", err)
	}
	if last.Seq != 3 {
		t.Fatalf("序号应单调递增, 期望 3, 实际 %d", last.Seq)
	}
}

func TestCreateRateEventRejectsInvalidRate(t *testing.T) {
	store := newFakeIngestStore()
	svc := newTestService(store)

	cases := []struct{ bid, ask string }{
		{"1.2", "1.1"},
		{"1.1", "1.1"},
		{"abc", "1.1"},
		{"1.1", "abc"},
	}
	for _, c := range cases {
		err := svc.CreateRateEvent(context.Background(), "EUR/USD", c.bid, c.ask)
		var invalid *InvalidRateError
		if !errors.As(err, &invalid) {
			t.Fatalf("bid=%s ask=%s 应返回 InvalidRateError, 实际 %v", c.bid, c.ask, err)
		}
	}
	if len(store.inserted) != 0 {
		t.Fatal("非法报价不应写入 outbox")
	}
}

func TestCreateRateEventRejectsInactivePair(t *testing.T) {
	store := newFakeIngestStore()
	store.pairs["EUR/USD"] = storage.AllowedPair{Pair: "EUR/USD", IsActive: false}
	svc := newTestService(store)

	err := svc.CreateRateEvent(context.Background(), "EUR/USD", "1.08450", "1.08470")
	var notActive *PairNotActiveError
	if !errors.As(err, &notActive) {
		t.Fatalf("停用的货币对应返回 PairNotActiveError, 实际 %v", err)
	}
	if store.tx.committed {
		t.Fatal("事务不应提交")
	}
	if !store.tx.rolledBack {
		t.Fatal("事务应已回滚")
	}
}

func TestCreateRateEventSwallowsDuplicate(t *testing.T) {
	store := newFakeIngestStore()
	store.insertErr = storage.ErrDuplicateEvent
	svc := newTestService(store)

	if err := svc.CreateRateEvent(context.Background(), "EUR/USD", "1.08450", "1.08470"); err != nil {
		t.Fatalf("重复事件应视为成功: %v", err)
	}
	if !store.tx.committed {
		t.Fatal("重复事件路径仍应提交事务")
	}
}
