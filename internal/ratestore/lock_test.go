package ratestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPairLockMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locks := NewPairLock(client, 5*time.Second)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "EUR/USD")
	if err != nil {
		t.Fatalf("首次加锁不应报错: %v", err)
	}

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := locks.Acquire(blockedCtx, "EUR/USD"); err == nil {
		t.Fatal("同一货币对的第二次加锁应阻塞至超时")
	}

	// a different pair is never blocked
	otherRelease, err := locks.Acquire(ctx, "GBP/USD")
	if err != nil {
		t.Fatalf("其他货币对加锁不应报错: %v", err)
	}
	otherRelease()

	release()
	release2, err := locks.Acquire(ctx, "EUR/USD")
	if err != nil {
		t.Fatalf("释放后重新加锁不应报错: %v", err)
	}
	release2()
}
