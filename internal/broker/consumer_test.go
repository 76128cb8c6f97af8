package broker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ratehub/internal/domain"
)

type scriptedReader struct {
	messages  []kafka.Message
	committed []kafka.Message
	done      context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		r.done()
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error { return nil }

type scriptedApplier struct {
	updates []domain.StoreUpdate
	seen    [][]byte
}

func (a *scriptedApplier) OnRawMessage(_ context.Context, raw []byte) domain.StoreUpdate {
	a.seen = append(a.seen, raw)
	update := a.updates[0]
	a.updates = a.updates[1:]
	return update
}

type capturedPublisher struct {
	views []domain.RateView
}

func (p *capturedPublisher) Publish(_ context.Context, view domain.RateView) {
	p.views = append(p.views, view)
}

func TestConsumerForwardsOnlyAcceptedUpdates(t *testing.T) {
	accepted := domain.RateView{Pair: "EUR/USD", Seq: 1, Bid: "1.08450", Ask: "1.08470"}
	kept := domain.RateView{Pair: "EUR/USD", Seq: 1, Bid: "1.08450", Ask: "1.08470"}

	reader := &scriptedReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`one`)},
		{Offset: 2, Value: []byte(`two`)},
		{Offset: 3, Value: []byte(`three`)},
	}}
	applier := &scriptedApplier{updates: []domain.StoreUpdate{
		domain.AcceptedUpdate(accepted),
		domain.KeptUpdate(domain.KeptLastGood, kept),
		domain.DroppedUpdate(domain.DroppedInvalidTransport),
	}}
	cluster := &capturedPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.done = cancel

	c := newConsumer(reader, applier, cluster, zerolog.Nop())
	_ = c.Run(ctx)

	if len(applier.seen) != 3 {
		t.Fatalf("应处理 3 条消息, 实际 %d", len(applier.seen))
	}
	if len(reader.committed) != 3 {
		t.Fatalf("无论结果如何都应提交全部消息, 实际 %d", len(reader.committed))
	}
	if len(cluster.views) != 1 {
		t.Fatalf("只有 Accepted 的结果应转发集群, 实际 %d", len(cluster.views))
	}
	if cluster.views[0].Pair != "EUR/USD" || cluster.views[0].Seq != 1 {
		t.Fatalf("转发内容不正确: %+v", cluster.views[0])
	}
}
