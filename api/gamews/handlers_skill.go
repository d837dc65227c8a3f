package gamews

import (
	"context"

	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/game/skill"
	"github.com/tamer-online/gameserver/protocol"
)

// RegisterSkillHandlers wires the skill-cap opcode into the dispatcher.
func RegisterSkillHandlers(d *Dispatcher, svc *skill.Service) {
	d.On(protocol.OpSkillCapIncrease, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		invSlot, err := r.ReadUint32()
		if err != nil {
			return err
		}
		itemID, err := r.ReadUint32()
		if err != nil {
			return err
		}
		formSlot, err := r.ReadUint32()
		if err != nil {
			return err
		}
		svc.CapUp(ctx, s, invSlot, itemID, formSlot)
		return nil
	})
}
