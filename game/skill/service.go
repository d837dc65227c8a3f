// Package skill handles the digicode consumable that raises the shared
// skill level cap of the partner's active evolution form.
package skill

import (
	"context"
	"fmt"

	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/gateway"
	"github.com/tamer-online/gameserver/protocol"
	"github.com/tamer-online/gameserver/retry"
	"github.com/tamer-online/gameserver/security"
	"go.uber.org/zap"
)

// Cap increase outcomes carried in the result packet.
const (
	ResultSuccess = iota
	ResultItemTypeError
	ResultAlreadyOpen
	ResultSkipBeforeLevel
)

// Evolution ranks. The digicode's section decides which ranks it applies to.
type Rank int

const (
	RankRookie Rank = iota + 1
	RankChampion
	RankUltimate
	RankMega
	RankRookieX
	RankChampionX
	RankUltimateX
	RankMegaX
	RankBurstMode
	RankBurstModeX
	RankJogress
	RankJogressX
	RankCapsule
	RankSpirit
	RankExtra
)

const capStep = 5

// sectionRanks lists the evolution ranks each digicode section applies
// to. Sections come in triples; the last digit picks the target level.
var sectionRanks = map[int][]Rank{
	20201: {RankRookie, RankChampion, RankUltimate, RankMega},
	20202: {RankRookie, RankChampion, RankUltimate, RankMega},
	20203: {RankRookie, RankChampion, RankUltimate, RankMega},
	20206: {RankRookieX, RankChampionX, RankUltimateX, RankMegaX},
	20207: {RankRookieX, RankChampionX, RankUltimateX, RankMegaX},
	20208: {RankRookieX, RankChampionX, RankUltimateX, RankMegaX},
	20211: {RankBurstMode},
	20212: {RankBurstMode},
	20213: {RankBurstMode},
	20216: {RankBurstModeX},
	20217: {RankBurstModeX},
	20218: {RankBurstModeX},
	20221: {RankJogress},
	20222: {RankJogress},
	20223: {RankJogress},
	20226: {RankJogressX},
	20227: {RankJogressX},
	20228: {RankJogressX},
	20231: {RankCapsule},
	20232: {RankCapsule},
	20233: {RankCapsule},
	20236: {RankSpirit},
	20237: {RankSpirit},
	20238: {RankSpirit},
	20241: {RankExtra},
	20242: {RankExtra},
	20243: {RankExtra},
}

// TargetLevel resolves the cap a digicode section unlocks, or -1 when the
// section's last digit maps to no level.
func TargetLevel(section int) int {
	switch section % 10 {
	case 1, 6:
		return 15
	case 2, 7:
		return 20
	case 3, 8:
		return 25
	default:
		return -1
	}
}

// Evaluate applies the progression rules for a cap increase: the section
// must cover the form's rank and the current cap must sit exactly one
// step below the target (10→15→20→25, no skipping).
func Evaluate(section int, rank Rank, currentCap int) int {
	target := TargetLevel(section)
	if target == -1 {
		return ResultItemTypeError
	}
	ranks, ok := sectionRanks[section]
	if !ok {
		return ResultItemTypeError
	}
	covered := false
	for _, r := range ranks {
		if r == rank {
			covered = true
			break
		}
	}
	if !covered {
		return ResultItemTypeError
	}
	if currentCap >= target {
		return ResultAlreadyOpen
	}
	if (target == 15 && currentCap != 10) ||
		(target == 20 && currentCap != 15) ||
		(target == 25 && currentCap != 20) {
		return ResultSkipBeforeLevel
	}
	return ResultSuccess
}

// Service implements the cap-up operation.
type Service struct {
	catalog *item.Catalog
	sec     *security.Service
	gw      gateway.Gateway
	retrier *retry.Executor
	logger  *zap.Logger
}

func NewService(catalog *item.Catalog, sec *security.Service, gw gateway.Gateway, retrier *retry.Executor, logger *zap.Logger) *Service {
	return &Service{catalog: catalog, sec: sec, gw: gw, retrier: retrier, logger: logger}
}

// CapUp consumes one digicode from invSlot to raise every skill's max
// level on the partner's active evolution. Failure outcomes are reported
// to the client; nothing is consumed unless the result is success.
func (svc *Service) CapUp(ctx context.Context, s *player.Session, invSlot, itemID, formSlot uint32) {
	if !s.AllowAction(security.ActionSkillCap) {
		return
	}
	partner := s.Partner
	if partner == nil || len(partner.Skills) == 0 {
		return
	}

	digicode := s.Inventory.FindBySlot(int(invSlot))
	if digicode == nil || digicode.Info == nil || digicode.Info.Type != item.TypeDigicode {
		return
	}
	if digicode.ItemID != int(itemID) {
		s.Send(protocol.SkillCapResult(ResultItemTypeError, formSlot,
			partner.Skills[0].MaxLevel, invSlot, itemID))
		return
	}

	currentCap := partner.Skills[0].MaxLevel
	result := Evaluate(digicode.Info.Section, Rank(partner.Rank), currentCap)
	if result != ResultSuccess {
		s.Send(protocol.SkillCapResult(result, formSlot, currentCap, invSlot, itemID))
		svc.sec.LogInventoryOperation(s.TamerID, "skill_cap", false,
			fmt.Sprintf("result %d section %d cap %d", result, digicode.Info.Section, currentCap))
		return
	}

	for i := range partner.Skills {
		partner.Skills[i].MaxLevel += capStep
	}
	newCap := partner.Skills[0].MaxLevel

	if err := s.Inventory.RemoveOrReduce(digicode.ItemID, 1); err != nil {
		for i := range partner.Skills {
			partner.Skills[i].MaxLevel -= capStep
		}
		svc.sec.LogInventoryOperation(s.TamerID, "skill_cap", false, "consume: "+err.Error())
		return
	}

	if err := svc.retrier.Do(ctx, "skill.UpdateItemList", func() error {
		return svc.gw.UpdateItemList(ctx, s.TamerID, s.Inventory.Stacks(), s.Inventory.Bits())
	}); err != nil {
		svc.logger.Error("skill cap item persistence failed",
			zap.Int64("tamer_id", s.TamerID), zap.Error(err))
	}
	if err := svc.retrier.Do(ctx, "skill.UpdateEvolution", func() error {
		return svc.gw.UpdateEvolution(ctx, partner.EvolutionID, newCap)
	}); err != nil {
		svc.logger.Error("skill cap evolution persistence failed",
			zap.Int64("tamer_id", s.TamerID), zap.Error(err))
	}

	stacks := s.Inventory.Stacks()
	data := make([]protocol.StackData, 0, len(stacks))
	for _, st := range stacks {
		data = append(data, protocol.StackData{ItemID: st.ItemID, Amount: st.Amount, Slot: st.Slot})
	}
	s.Send(protocol.Group(
		protocol.ItemConsumeSuccess(s.Handle, int16(invSlot)),
		protocol.SkillCapResult(ResultSuccess, formSlot, newCap, invSlot, itemID),
		protocol.LoadInventory(data, s.Inventory.Bits()),
	))
	svc.sec.LogInventoryOperation(s.TamerID, "skill_cap", true,
		fmt.Sprintf("cap %d -> %d", currentCap, newCap))
}
