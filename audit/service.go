// Package audit persists security-relevant events asynchronously. Events
// are queued on a channel and flushed to the database in batches so the
// packet handlers never block on storage.
package audit

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tamer-online/gameserver/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Severity levels for audit events.
const (
	SeverityInfo     = 0
	SeverityWarn     = 1
	SeverityCritical = 2
)

// Event is the in-process form of an audit record.
type Event struct {
	TraceID    string
	TamerID    int64
	TamerName  string
	TargetID   int64
	TargetName string
	Action     string
	Success    bool
	Severity   int
	Details    map[string]any
	IP         string
}

const (
	queueSize     = 4096
	flushBatch    = 100
	flushInterval = 2 * time.Second
)

// Service is the async audit sink.
type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	queue    chan Event
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	s := &Service{
		db:     db,
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Record queues an event. Drops with a warning if the queue is full so
// callers never block on the audit path.
func (s *Service) Record(ev Event) {
	if ev.TraceID == "" {
		ev.TraceID = uuid.NewString()
	}
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("audit queue full, dropping event",
			zap.String("action", ev.Action),
			zap.Int64("tamer_id", ev.TamerID))
	}
}

// Stop flushes pending events and terminates the worker.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Service) worker() {
	defer s.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.persist(batch)
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-s.queue:
			batch = append(batch, ev)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case ev := <-s.queue:
					batch = append(batch, ev)
					if len(batch) >= flushBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Service) persist(batch []Event) {
	rows := make([]model.AuditEvent, 0, len(batch))
	for _, ev := range batch {
		var details datatypes.JSON
		if ev.Details != nil {
			if b, err := json.Marshal(ev.Details); err == nil {
				details = datatypes.JSON(b)
			}
		}
		var target *int64
		if ev.TargetID != 0 {
			target = &ev.TargetID
		}
		rows = append(rows, model.AuditEvent{
			TraceID:    ev.TraceID,
			TamerID:    ev.TamerID,
			TamerName:  ev.TamerName,
			TargetID:   target,
			TargetName: ev.TargetName,
			Action:     ev.Action,
			Success:    ev.Success,
			Severity:   ev.Severity,
			Details:    details,
			IP:         ev.IP,
		})
	}
	if err := s.db.CreateInBatches(rows, flushBatch).Error; err != nil {
		s.logger.Error("audit batch write failed",
			zap.Int("events", len(rows)),
			zap.Error(err))
	}
}

// QueryRecent returns the newest events for a tamer, for moderation
// tooling and tests.
func (s *Service) QueryRecent(tamerID int64, limit int) ([]model.AuditEvent, error) {
	var rows []model.AuditEvent
	err := s.db.Where("tamer_id = ?", tamerID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
