package gamews

import (
	"context"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/protocol"
	"go.uber.org/zap"
)

// HandlerFunc processes one inbound packet's payload.
type HandlerFunc func(ctx context.Context, s *player.Session, r *protocol.Reader) error

// Dispatcher routes inbound binary packets to registered handlers by
// opcode. Handlers for one session run sequentially on its read pump;
// different sessions dispatch concurrently.
type Dispatcher struct {
	handlers map[protocol.Opcode]HandlerFunc
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.Opcode]HandlerFunc),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given opcode.
func (d *Dispatcher) On(op protocol.Opcode, fn HandlerFunc) {
	d.handlers[op] = fn
}

// Dispatch walks the frame (grouped packets arrive concatenated) and
// invokes the handler for each contained packet. A malformed frame or a
// panicking handler is logged and the session stays alive.
func (d *Dispatcher) Dispatch(s *player.Session, frame []byte) {
	packets := protocol.Split(frame)
	if len(packets) == 0 {
		d.logger.Warn("malformed frame",
			zap.Int64("tamer_id", s.TamerID),
			zap.Int("bytes", len(frame)))
		return
	}
	for _, pkt := range packets {
		d.dispatchOne(s, pkt.Op, pkt.Payload)
	}
}

func (d *Dispatcher) dispatchOne(s *player.Session, op protocol.Opcode, payload []byte) {
	fn, ok := d.handlers[op]
	if !ok {
		d.logger.Debug("unhandled opcode",
			zap.Uint16("opcode", uint16(op)),
			zap.Int64("tamer_id", s.TamerID))
		return
	}

	s.TraceID = uuid.NewString()
	ctx := context.WithValue(context.Background(), ctxKeyTraceID{}, s.TraceID)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				zap.String("opcode", op.String()),
				zap.Int64("tamer_id", s.TamerID),
				zap.String("trace_id", s.TraceID),
				zap.Any("recover", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	if err := fn(ctx, s, protocol.NewReader(payload)); err != nil {
		d.logger.Warn("handler error",
			zap.String("opcode", op.String()),
			zap.Int64("tamer_id", s.TamerID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
	}
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
