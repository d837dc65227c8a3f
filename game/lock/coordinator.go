// Package lock provides per-player and per-pair mutual exclusion for
// operations that touch two inventories at once.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// token is a one-slot semaphore with a reference count. refs counts
// goroutines that hold or are waiting on the semaphore, so the evictor
// can tell idle tokens from live ones. refs is guarded by the locker's
// table mutex, which makes checkout and eviction mutually exclusive.
type token struct {
	sem     chan struct{}
	refs    int
	created time.Time
}

// PairLocker hands out locks keyed by ordered pairs of session handles.
// Both participants of a trade resolve to the same key regardless of who
// initiated, so the pair is serialized without lock-ordering deadlocks.
type PairLocker struct {
	mu        sync.Mutex
	tokens    map[string]*token
	maxTokens int
	evictN    int
	logger    *zap.Logger
}

func NewPairLocker(maxTokens, evictBatch int, logger *zap.Logger) *PairLocker {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if evictBatch <= 0 {
		evictBatch = 100
	}
	return &PairLocker{
		tokens:    make(map[string]*token),
		maxTokens: maxTokens,
		evictN:    evictBatch,
		logger:    logger,
	}
}

// PairKey normalizes two handles into a single order-independent key.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// AcquirePair locks the pair (a, b). The returned release func must be
// called exactly once. Blocks until the pair is free or ctx is done.
func (l *PairLocker) AcquirePair(ctx context.Context, a, b int64) (func(), error) {
	return l.AcquireKey(ctx, PairKey(a, b))
}

// AcquireKey locks an arbitrary key. Single-player operations pass the
// player's own handle formatted as a key.
func (l *PairLocker) AcquireKey(ctx context.Context, key string) (func(), error) {
	t := l.checkout(key)
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		l.checkin(t)
		return nil, ctx.Err()
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			<-t.sem
			l.checkin(t)
		})
	}
	return release, nil
}

// checkout returns the token for key with its refcount already raised.
// The raise happens under the table mutex, so the evictor can never see
// this token at zero refs once checkout has returned it.
func (l *PairLocker) checkout(key string) *token {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[key]
	if !ok {
		t = &token{sem: make(chan struct{}, 1), created: time.Now()}
		l.tokens[key] = t
	}
	t.refs++
	if len(l.tokens) > l.maxTokens {
		l.evictLocked()
	}
	return t
}

func (l *PairLocker) checkin(t *token) {
	l.mu.Lock()
	t.refs--
	l.mu.Unlock()
}

// evictLocked removes up to evictN of the oldest unreferenced tokens.
// Tokens with waiters or holders are never touched. Caller holds mu.
func (l *PairLocker) evictLocked() {
	type cand struct {
		key     string
		created time.Time
	}
	var cands []cand
	for k, t := range l.tokens {
		if t.refs == 0 {
			cands = append(cands, cand{key: k, created: t.created})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].created.Before(cands[j].created)
	})
	if len(cands) > l.evictN {
		cands = cands[:l.evictN]
	}
	for _, c := range cands {
		delete(l.tokens, c.key)
	}
	if len(cands) > 0 {
		l.logger.Debug("evicted idle lock tokens",
			zap.Int("removed", len(cands)),
			zap.Int("remaining", len(l.tokens)))
	}
}

// Len returns the number of live tokens, for tests and diagnostics.
func (l *PairLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tokens)
}
