package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeClient is an in-memory stand-in for *redis.Client covering only the
// subset of commands Limiter uses.
type fakeClient struct {
	counts map[string]int64
	ttl    map[string]time.Time
}

func newFakeClient() *fakeClient {
	return &fakeClient{counts: map[string]int64{}, ttl: map[string]time.Time{}}
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	count, ok := f.counts[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(itoa(count))
	return cmd
}

func (f *fakeClient) TTL(ctx context.Context, key string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second)
	until, ok := f.ttl[key]
	if !ok {
		cmd.SetVal(0)
		return cmd
	}
	cmd.SetVal(time.Until(until))
	return cmd
}

func (f *fakeClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeClient) Expire(ctx context.Context, key string, exp time.Duration) *redis.BoolCmd {
	f.ttl[key] = time.Now().Add(exp)
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.counts, k)
		delete(f.ttl, k)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func newTestLimiter(fc *fakeClient) *Limiter {
	return &Limiter{redis: fc, keyPrefix: "login", maxAttempts: 3, window: time.Minute}
}

func TestCheckAllowsUnderThreshold(t *testing.T) {
	fc := newFakeClient()
	l := newTestLimiter(fc)

	result, err := l.Check(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected Allowed true with no prior attempts")
	}
	if result.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", result.Remaining)
	}
}

func TestRecordFailureBlocksAtThreshold(t *testing.T) {
	fc := newFakeClient()
	l := newTestLimiter(fc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.RecordFailure(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	result, err := l.Check(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected Allowed false after 3 failures")
	}
}

func TestResetClearsCounter(t *testing.T) {
	fc := newFakeClient()
	l := newTestLimiter(fc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.RecordFailure(ctx, "1.2.3.4")
	}

	if err := l.Reset(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	result, err := l.Check(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected Allowed true after Reset")
	}
}
