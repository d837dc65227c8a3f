// Package moderation applies account sanctions and broadcasts the
// resulting public notices.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/tamer-online/gameserver/audit"
	"github.com/tamer-online/gameserver/gateway"
	"github.com/tamer-online/gameserver/model"
	"github.com/tamer-online/gameserver/retry"
	"go.uber.org/zap"
)

// permanentBanEnd is far enough out that clients render it as permanent.
var permanentBanEnd = time.Date(2999, 12, 31, 23, 59, 59, 0, time.UTC)

// Service issues bans and records them through the gateway.
type Service struct {
	gw      gateway.Gateway
	retrier *retry.Executor
	auditor *audit.Service
	logger  *zap.Logger
}

func NewService(gw gateway.Gateway, retrier *retry.Executor, auditor *audit.Service, logger *zap.Logger) *Service {
	return &Service{gw: gw, retrier: retrier, auditor: auditor, logger: logger}
}

// BanPermanently records a permanent block for the account and returns
// the public notice text to broadcast. The ban is best effort on the
// persistence side; a storage failure is logged but the session is still
// cut loose by the caller.
func (s *Service) BanPermanently(ctx context.Context, accountID, tamerID int64, tamerName, reason string) string {
	block := &model.AccountBlock{
		AccountID: accountID,
		Type:      model.BlockPermanent,
		Reason:    reason,
		StartAt:   time.Now(),
		EndAt:     permanentBanEnd,
	}
	err := s.retrier.Do(ctx, "moderation.AddAccountBlock", func() error {
		return s.gw.AddAccountBlock(ctx, block)
	})
	if err != nil {
		s.logger.Error("failed to persist account block",
			zap.Int64("account_id", accountID),
			zap.Error(err))
	}

	s.auditor.Record(audit.Event{
		TamerID:   tamerID,
		TamerName: tamerName,
		Action:    "ban",
		Success:   err == nil,
		Severity:  audit.SeverityCritical,
		Details:   map[string]any{"reason": reason, "type": "permanent"},
	})
	s.logger.Warn("account banned",
		zap.Int64("account_id", accountID),
		zap.Int64("tamer_id", tamerID),
		zap.String("reason", reason))

	return fmt.Sprintf("Tamer %s has been permanently banned: %s", tamerName, reason)
}

// SecondsRemaining converts the permanent ban horizon into the seconds
// value carried by the ban packet.
func SecondsRemaining() uint32 {
	d := time.Until(permanentBanEnd)
	if d <= 0 {
		return 0
	}
	secs := d / time.Second
	if secs > time.Duration(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(secs)
}
