package gamews

import (
	"context"

	"github.com/tamer-online/gameserver/game/hatch"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/protocol"
)

// RegisterHatchHandlers wires the incubator opcodes into the dispatcher.
func RegisterHatchHandlers(d *Dispatcher, svc *hatch.Service) {
	d.On(protocol.OpHatchFinish, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		// Leading bytes carry client window state the server ignores.
		if err := r.Skip(5); err != nil {
			return err
		}
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		svc.Finish(ctx, s, name)
		return nil
	})

	d.On(protocol.OpIncubatorClose, func(ctx context.Context, s *player.Session, r *protocol.Reader) error {
		svc.CloseIncubator(ctx, s)
		return nil
	})
}
