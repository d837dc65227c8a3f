// Package hatch turns an incubated egg into a new partner Digimon and
// handles closing the incubator slot.
package hatch

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/tamer-online/gameserver/game/integrity"
	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/lock"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/gateway"
	"github.com/tamer-online/gameserver/model"
	"github.com/tamer-online/gameserver/protocol"
	"github.com/tamer-online/gameserver/retry"
	"github.com/tamer-online/gameserver/security"
	"go.uber.org/zap"
)

// Size roll bounds, in ten-thousandths of the base model scale.
const (
	sizeMin = 9000
	sizeMax = 12000
)

// Service implements the hatch and incubator operations.
type Service struct {
	locker    *lock.PairLocker
	validator *integrity.Validator
	catalog   *item.Catalog
	sec       *security.Service
	gw        gateway.Gateway
	retrier   *retry.Executor
	logger    *zap.Logger
}

func NewService(
	locker *lock.PairLocker,
	validator *integrity.Validator,
	catalog *item.Catalog,
	sec *security.Service,
	gw gateway.Gateway,
	retrier *retry.Executor,
	logger *zap.Logger,
) *Service {
	return &Service{
		locker:    locker,
		validator: validator,
		catalog:   catalog,
		sec:       sec,
		gw:        gw,
		retrier:   retrier,
		logger:    logger,
	}
}

func hatchKey(tamerID int64) string {
	return fmt.Sprintf("hatch_%d", tamerID)
}

// Finish hatches the incubated egg into a named partner. The operation is
// serialized per player so a spammed hatch packet cannot mint two
// partners from one egg.
func (h *Service) Finish(ctx context.Context, s *player.Session, name string) {
	if !s.AllowAction(security.ActionHatch) {
		h.sec.LogHatchAttempt(s.TamerID, false, "rate limited")
		return
	}
	if h.sec.IsSuspicious(s.TamerID, security.ActionHatch) {
		h.sec.LogHatchAttempt(s.TamerID, false, "flagged suspicious")
		return
	}

	release, err := h.locker.AcquireKey(ctx, hatchKey(s.TamerID))
	if err != nil {
		return
	}
	defer release()

	if r := h.validator.ValidateHatchIntegrity(s, name); !r.OK {
		h.sec.LogHatchAttempt(s.TamerID, false, r.Reason)
		return
	}

	eggID := s.Incubator.EggID
	grade := s.Incubator.HatchLevel
	slot := s.FindFreeDigimonSlot()
	baseType := h.baseTypeFor(eggID)
	size := sizeMin + rand.Intn(sizeMax-sizeMin+1)

	d := &model.Digimon{
		TamerID:    s.TamerID,
		Name:       name,
		BaseType:   baseType,
		Slot:       slot,
		Level:      1,
		HatchGrade: grade,
		Size:       size,
	}
	err = h.retrier.Do(ctx, "hatch.CreateDigimon", func() error {
		_, err := h.gw.CreateDigimon(ctx, d)
		return err
	})
	if err != nil {
		h.sec.LogHatchAttempt(s.TamerID, false, "persist digimon: "+err.Error())
		return
	}

	if !s.OccupyDigimonSlot(slot) {
		// Slot got taken under us despite the lock. Impossible in the
		// normal flow, so surface it loudly.
		h.sec.LogSuspiciousActivity(s.TamerID, security.ActionHatch,
			fmt.Sprintf("digimon slot %d raced", slot))
		return
	}
	s.Incubator = player.Incubator{}
	if err := h.retrier.Do(ctx, "hatch.UpdateIncubator", func() error {
		return h.gw.UpdateIncubator(ctx, s.TamerID, 0, 0)
	}); err != nil {
		h.logger.Error("incubator clear failed",
			zap.Int64("tamer_id", s.TamerID),
			zap.Error(err))
	}

	s.Send(protocol.Group(
		protocol.HatchFinished(s.Handle, baseType, grade, size, slot, name),
		protocol.SystemMessage(fmt.Sprintf("%s hatched %s!", s.Name, name)),
	))
	h.sec.LogHatchAttempt(s.TamerID, true, fmt.Sprintf("hatched type %d grade %d", baseType, grade))
	h.logger.Info("digimon hatched",
		zap.Int64("tamer_id", s.TamerID),
		zap.Int("base_type", baseType),
		zap.Int("grade", grade),
		zap.Int("slot", slot))
}

// baseTypeFor maps the egg item to the species it hatches into. Falls
// back to the egg's own ID when the catalog row carries no hatch type.
func (h *Service) baseTypeFor(eggID int) int {
	if info := h.catalog.Lookup(eggID); info != nil && info.HatchType != 0 {
		return info.HatchType
	}
	return eggID
}

// CloseIncubator empties the incubator, destroying any egg still inside.
func (h *Service) CloseIncubator(ctx context.Context, s *player.Session) {
	if !s.AllowAction(security.ActionHatch) {
		return
	}
	release, err := h.locker.AcquireKey(ctx, hatchKey(s.TamerID))
	if err != nil {
		return
	}
	defer release()

	if r := h.validator.ValidatePlayerState(s); !r.OK {
		h.sec.LogHatchAttempt(s.TamerID, false, r.Reason)
		return
	}
	if s.Incubator.EggID == 0 {
		h.sec.LogHatchAttempt(s.TamerID, false, "incubator already empty")
		return
	}

	s.Incubator = player.Incubator{}
	if err := h.retrier.Do(ctx, "hatch.UpdateIncubator", func() error {
		return h.gw.UpdateIncubator(ctx, s.TamerID, 0, 0)
	}); err != nil {
		h.logger.Error("incubator clear failed",
			zap.Int64("tamer_id", s.TamerID),
			zap.Error(err))
	}
	s.Send(protocol.IncubatorClosed())
	h.sec.LogHatchAttempt(s.TamerID, true, "incubator closed")
}
