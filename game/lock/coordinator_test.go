package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocker(maxTokens, evictBatch int) *PairLocker {
	return NewPairLocker(maxTokens, evictBatch, zap.NewNop())
}

func TestPairKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey(1, 2), PairKey(2, 1))
	assert.Equal(t, "1_2", PairKey(2, 1))
	assert.NotEqual(t, PairKey(1, 2), PairKey(1, 3))
}

func TestAcquirePair_MutualExclusion(t *testing.T) {
	l := newLocker(100, 10)
	ctx := context.Background()

	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Half the goroutines take the pair in reverse order.
			a, b := int64(7), int64(9)
			if n%2 == 0 {
				a, b = b, a
			}
			release, err := l.AcquirePair(ctx, a, b)
			require.NoError(t, err)
			defer release()

			v := atomic.AddInt32(&inside, 1)
			assert.Equal(t, int32(1), v, "two holders inside the pair lock")
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}(i)
	}
	wg.Wait()
}

func TestAcquirePair_DistinctPairsDoNotBlock(t *testing.T) {
	l := newLocker(100, 10)
	ctx := context.Background()

	r1, err := l.AcquirePair(ctx, 1, 2)
	require.NoError(t, err)
	defer r1()

	done := make(chan struct{})
	go func() {
		r2, err := l.AcquirePair(ctx, 3, 4)
		require.NoError(t, err)
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent pair blocked")
	}
}

func TestAcquireKey_ContextCancelled(t *testing.T) {
	l := newLocker(100, 10)
	release, err := l.AcquireKey(context.Background(), "busy")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.AcquireKey(ctx, "busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelease_Idempotent(t *testing.T) {
	l := newLocker(100, 10)
	release, err := l.AcquireKey(context.Background(), "k")
	require.NoError(t, err)
	release()
	release() // second call is a no-op

	// Lock must be acquirable again.
	r2, err := l.AcquireKey(context.Background(), "k")
	require.NoError(t, err)
	r2()
}

func TestEviction_DropsOldIdleTokens(t *testing.T) {
	l := newLocker(10, 5)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		release, err := l.AcquireKey(ctx, fmt.Sprintf("key_%d", i))
		require.NoError(t, err)
		release()
	}
	assert.LessOrEqual(t, l.Len(), 15, "eviction never ran")
}

func TestEviction_SparesHeldTokens(t *testing.T) {
	l := newLocker(5, 5)
	ctx := context.Background()

	release, err := l.AcquireKey(ctx, "held")
	require.NoError(t, err)
	defer release()

	for i := 0; i < 20; i++ {
		r, err := l.AcquireKey(ctx, fmt.Sprintf("idle_%d", i))
		require.NoError(t, err)
		r()
	}

	// The held token survived every eviction pass: re-acquiring it from
	// another goroutine must block until we release.
	ctx2, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.AcquireKey(ctx2, "held")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvictionChurn_KeepsMutualExclusion(t *testing.T) {
	// A tiny table forces an eviction pass on nearly every checkout
	// while other goroutines hammer one contested pair. The contested
	// token must never be evicted between its checkout and its wait,
	// which would hand out a second token for the same key.
	l := newLocker(4, 2)
	ctx := context.Background()

	stop := make(chan struct{})
	var churn sync.WaitGroup
	churn.Add(1)
	go func() {
		defer churn.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			r, err := l.AcquireKey(ctx, fmt.Sprintf("churn_%d", i))
			if err == nil {
				r()
			}
		}
	}()

	var inside int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				release, err := l.AcquirePair(ctx, 1, 2)
				if err != nil {
					return
				}
				if v := atomic.AddInt32(&inside, 1); v != 1 {
					t.Errorf("%d holders inside the pair lock", v)
				}
				atomic.AddInt32(&inside, -1)
				release()
			}
		}()
	}
	wg.Wait()
	close(stop)
	churn.Wait()
}

func TestConcurrentTradePairs_NoDeadlock(t *testing.T) {
	l := newLocker(1000, 100)
	ctx := context.Background()

	// Sessions 1..5 trade with each other in random-direction pairs.
	var ops int64
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				a := int64(g%5 + 1)
				b := int64((g+i)%5 + 1)
				if a == b {
					continue
				}
				release, err := l.AcquirePair(ctx, a, b)
				if err != nil {
					return
				}
				atomic.AddInt64(&ops, 1)
				release()
			}
		}(g)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		assert.Positive(t, atomic.LoadInt64(&ops))
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock between concurrent pairs")
	}
}
