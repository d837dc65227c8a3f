package security

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamer-online/gameserver/audit"
	"github.com/tamer-online/gameserver/config"
	"go.uber.org/zap"
)

// Action names used across the handlers. Each action keeps its own
// sliding window inside the tracker.
const (
	ActionTrade     = "trade"
	ActionHatch     = "hatch"
	ActionInventory = "inventory"
	ActionSkillCap  = "skill_cap"
)

// Service records player actions and answers whether a player's recent
// pattern of failures or sheer request rate crosses the suspicion
// thresholds. Suspicious players get their trade and hatch requests
// silently refused until the window rolls past. Sweep is driven
// externally, normally by the scheduler.
type Service struct {
	cfg      config.SecurityConfig
	auditor  *audit.Service
	logger   *zap.Logger
	trackers sync.Map // tamerID int64 → *tracker
	count    atomic.Int64
	sweepMu  sync.Mutex
}

func NewService(cfg config.SecurityConfig, auditor *audit.Service, logger *zap.Logger) *Service {
	return &Service{
		cfg:     cfg,
		auditor: auditor,
		logger:  logger,
	}
}

func (s *Service) trackerFor(tamerID int64) *tracker {
	if v, ok := s.trackers.Load(tamerID); ok {
		return v.(*tracker)
	}
	t := newTracker()
	actual, loaded := s.trackers.LoadOrStore(tamerID, t)
	if !loaded {
		if s.count.Add(1) > int64(s.cfg.MaxTrackers) {
			go s.evictIdle()
		}
		return t
	}
	return actual.(*tracker)
}

// IsSuspicious reports whether the player's recent history for the action
// crosses either threshold: too many failures in the failure window, or
// too many attempts of any outcome in the attempt window.
func (s *Service) IsSuspicious(tamerID int64, action string) bool {
	v, ok := s.trackers.Load(tamerID)
	if !ok {
		return false
	}
	t := v.(*tracker)
	now := time.Now()
	if t.failuresSince(action, now.Add(-s.cfg.FailureWindow)) >= s.cfg.SuspiciousFailures {
		return true
	}
	if t.attemptsSince(action, now.Add(-s.cfg.AttemptWindow)) >= s.cfg.SuspiciousAttempts {
		return true
	}
	return false
}

// LogTradeAttempt records a trade action outcome.
func (s *Service) LogTradeAttempt(tamerID, targetID int64, success bool, detail string) {
	s.trackerFor(tamerID).record(ActionTrade, success, time.Now())
	s.auditor.Record(audit.Event{
		TamerID:  tamerID,
		TargetID: targetID,
		Action:   ActionTrade,
		Success:  success,
		Severity: severityOf(success),
		Details:  map[string]any{"detail": detail},
	})
}

// LogHatchAttempt records a hatch or incubator action outcome.
func (s *Service) LogHatchAttempt(tamerID int64, success bool, detail string) {
	s.trackerFor(tamerID).record(ActionHatch, success, time.Now())
	s.auditor.Record(audit.Event{
		TamerID:  tamerID,
		Action:   ActionHatch,
		Success:  success,
		Severity: severityOf(success),
		Details:  map[string]any{"detail": detail},
	})
}

// LogInventoryOperation records an inventory mutation outcome.
func (s *Service) LogInventoryOperation(tamerID int64, op string, success bool, detail string) {
	s.trackerFor(tamerID).record(ActionInventory, success, time.Now())
	s.auditor.Record(audit.Event{
		TamerID:  tamerID,
		Action:   ActionInventory,
		Success:  success,
		Severity: severityOf(success),
		Details:  map[string]any{"op": op, "detail": detail},
	})
}

// LogSuspiciousActivity records a high-severity event that is not tied to
// a specific tracked action, such as malformed packets or impossible
// client state.
func (s *Service) LogSuspiciousActivity(tamerID int64, action, detail string) {
	s.trackerFor(tamerID).record(action, false, time.Now())
	s.auditor.Record(audit.Event{
		TamerID:  tamerID,
		Action:   action,
		Success:  false,
		Severity: audit.SeverityCritical,
		Details:  map[string]any{"detail": detail},
	})
	s.logger.Warn("suspicious activity",
		zap.Int64("tamer_id", tamerID),
		zap.String("action", action),
		zap.String("detail", detail))
}

func severityOf(success bool) int {
	if success {
		return audit.SeverityInfo
	}
	return audit.SeverityWarn
}

// Sweep drops trackers idle past the configured age. Meant to run
// periodically off the scheduler.
func (s *Service) Sweep() {
	s.sweepIdle(time.Now().Add(-s.cfg.TrackerIdleEvict))
}

func (s *Service) sweepIdle(cutoff time.Time) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	removed := 0
	s.trackers.Range(func(k, v any) bool {
		if v.(*tracker).idleSince().Before(cutoff) {
			s.trackers.Delete(k)
			s.count.Add(-1)
			removed++
		}
		return true
	})
	if removed > 0 {
		s.logger.Debug("swept idle trackers", zap.Int("removed", removed))
	}
}

// evictIdle removes the oldest trackers when the map outgrows MaxTrackers.
func (s *Service) evictIdle() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.count.Load() <= int64(s.cfg.MaxTrackers) {
		return
	}
	type cand struct {
		id   int64
		seen time.Time
	}
	var cands []cand
	s.trackers.Range(func(k, v any) bool {
		cands = append(cands, cand{id: k.(int64), seen: v.(*tracker).idleSince()})
		return true
	})
	sort.Slice(cands, func(i, j int) bool { return cands[i].seen.Before(cands[j].seen) })
	batch := s.cfg.TrackerEvictBatch
	if batch <= 0 || batch > len(cands) {
		batch = len(cands)
	}
	for _, c := range cands[:batch] {
		s.trackers.Delete(c.id)
		s.count.Add(-1)
	}
	s.logger.Debug("evicted trackers over capacity", zap.Int("removed", batch))
}

// TrackerCount returns the live tracker count, for tests.
func (s *Service) TrackerCount() int {
	return int(s.count.Load())
}
