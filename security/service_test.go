package security

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamer-online/gameserver/audit"
	"github.com/tamer-online/gameserver/config"
	"github.com/tamer-online/gameserver/testutil"
	"go.uber.org/zap"
)

func testConfig() config.SecurityConfig {
	return config.SecurityConfig{
		SuspiciousFailures: 3,
		FailureWindow:      5 * time.Minute,
		SuspiciousAttempts: 10,
		AttemptWindow:      time.Minute,
		MaxTrackers:        100,
		TrackerIdleEvict:   time.Hour,
		TrackerEvictBatch:  10,
	}
}

func newTestService(t *testing.T) (*Service, *audit.Service) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	auditor := audit.NewService(db, zap.NewNop())
	t.Cleanup(auditor.Stop)
	return NewService(testConfig(), auditor, zap.NewNop()), auditor
}

func TestIsSuspicious_UnknownPlayer(t *testing.T) {
	svc, _ := newTestService(t)
	assert.False(t, svc.IsSuspicious(1, ActionTrade))
}

func TestIsSuspicious_FailureThreshold(t *testing.T) {
	svc, _ := newTestService(t)

	svc.LogTradeAttempt(1, 2, false, "bad slot")
	svc.LogTradeAttempt(1, 2, false, "bad slot")
	assert.False(t, svc.IsSuspicious(1, ActionTrade))

	svc.LogTradeAttempt(1, 2, false, "bad slot")
	assert.True(t, svc.IsSuspicious(1, ActionTrade))

	// Another player and another action stay clean.
	assert.False(t, svc.IsSuspicious(2, ActionTrade))
	assert.False(t, svc.IsSuspicious(1, ActionHatch))
}

func TestIsSuspicious_AttemptThreshold(t *testing.T) {
	svc, _ := newTestService(t)

	// Successes alone trip the volume threshold.
	for i := 0; i < 10; i++ {
		svc.LogHatchAttempt(7, true, "ok")
	}
	assert.True(t, svc.IsSuspicious(7, ActionHatch))
}

func TestTracker_EntryCapKeepsNewest(t *testing.T) {
	tr := newTracker()
	base := time.Now()
	for i := 0; i < maxEntries+20; i++ {
		tr.record("trade", true, base.Add(time.Duration(i)*time.Millisecond))
	}
	tr.mu.Lock()
	n := len(tr.actions["trade"])
	tr.mu.Unlock()
	assert.Equal(t, maxEntries, n)
	// All kept entries are the newest ones.
	assert.Equal(t, maxEntries, tr.attemptsSince("trade", base.Add(19*time.Millisecond)))
}

func TestWindowExpiry(t *testing.T) {
	tr := newTracker()
	old := time.Now().Add(-10 * time.Minute)
	tr.record("trade", false, old)
	tr.record("trade", false, old)
	tr.record("trade", false, old)

	cutoff := time.Now().Add(-5 * time.Minute)
	assert.Equal(t, 0, tr.failuresSince("trade", cutoff))
	tr.record("trade", false, time.Now())
	assert.Equal(t, 1, tr.failuresSince("trade", cutoff))
}

func TestSweep_RemovesIdleTrackers(t *testing.T) {
	svc, _ := newTestService(t)
	svc.LogTradeAttempt(1, 2, true, "ok")
	require.Equal(t, 1, svc.TrackerCount())

	// A cutoff in the future treats every tracker as idle.
	svc.sweepIdle(time.Now().Add(time.Minute))
	assert.Equal(t, 0, svc.TrackerCount())
	assert.False(t, svc.IsSuspicious(1, ActionTrade))
}

func TestEvict_BoundsTrackerTable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	auditor := audit.NewService(db, zap.NewNop())
	t.Cleanup(auditor.Stop)

	cfg := testConfig()
	cfg.MaxTrackers = 20
	cfg.TrackerEvictBatch = 5
	svc := NewService(cfg, auditor, zap.NewNop())

	for i := int64(1); i <= 50; i++ {
		svc.LogInventoryOperation(i, "move", true, "ok")
	}
	// Eviction runs async off the insert path; give it a moment.
	require.Eventually(t, func() bool {
		return svc.TrackerCount() <= 25
	}, 2*time.Second, 10*time.Millisecond,
		fmt.Sprintf("tracker count %d never bounded", svc.TrackerCount()))
}

func TestLogSuspiciousActivity_CountsAsFailure(t *testing.T) {
	svc, _ := newTestService(t)
	svc.LogSuspiciousActivity(9, ActionTrade, "negative amount")
	svc.LogSuspiciousActivity(9, ActionTrade, "negative amount")
	svc.LogSuspiciousActivity(9, ActionTrade, "negative amount")
	assert.True(t, svc.IsSuspicious(9, ActionTrade))
}
