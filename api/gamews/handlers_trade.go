package gamews

import (
	"context"

	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/game/trade"
	"github.com/tamer-online/gameserver/protocol"
)

// RegisterTradeHandlers wires the trade opcodes into the dispatcher.
func RegisterTradeHandlers(d *Dispatcher, svc *trade.Service) {
	d.On(protocol.OpTradeRequest, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		target, err := r.ReadInt64()
		if err != nil {
			return err
		}
		svc.Propose(ctx, s, target)
		return nil
	})

	d.On(protocol.OpTradeAccept, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		svc.Accept(ctx, s)
		return nil
	})

	d.On(protocol.OpTradeAddItem, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		slot, err := r.ReadInt16()
		if err != nil {
			return err
		}
		amount, err := r.ReadInt16()
		if err != nil {
			return err
		}
		svc.AddItem(ctx, s, slot, amount)
		return nil
	})

	d.On(protocol.OpTradeAddBits, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		bits, err := r.ReadUint64()
		if err != nil {
			return err
		}
		svc.AddBits(ctx, s, int64(bits))
		return nil
	})

	d.On(protocol.OpTradeRemoveItem, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		stagingSlot, err := r.ReadUint8()
		if err != nil {
			return err
		}
		svc.RemoveItem(ctx, s, int(stagingSlot))
		return nil
	})

	d.On(protocol.OpTradeConfirm, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		svc.Confirm(ctx, s)
		return nil
	})

	d.On(protocol.OpTradeCancel, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		svc.Abort(s, "cancelled by player")
		return nil
	})
}
