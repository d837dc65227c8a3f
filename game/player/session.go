package player

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tamer-online/gameserver/game/item"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// State is the session's game readiness state.
type State int

const (
	StateLoading State = iota
	StateReady
)

// Incubator holds the session's staged egg.
type Incubator struct {
	EggID      int
	HatchLevel int
}

// PartnerSkill is one skill of the active partner evolution, tracked in
// memory for the skill-cap operation.
type PartnerSkill struct {
	SkillID  int
	Level    int
	MaxLevel int
}

// Partner is the session's active Digimon and its current evolution form.
type Partner struct {
	DigimonID   int64
	EvolutionID int64
	BaseType    int
	FormSlot    int
	Rank        int
	Skills      []PartnerSkill
}

// Session represents a connected player's WebSocket session and owns the
// in-memory inventory and trade offer. Two sessions in a trade are peers
// related only by TargetTradeHandle; neither owns the other.
type Session struct {
	Handle    int64 // general handle, the wire identity
	AccountID int64
	TamerID   int64
	Name      string
	Addr      string

	Inventory *item.Inventory
	Offer     *item.Offer
	Incubator Incubator
	Partner   *Partner

	DigimonSlots int
	UsedSlots    map[int]bool // digimon slot → occupied

	Conn *websocket.Conn

	SendChan chan []byte
	Done     chan struct{}
	TraceID  string

	mu               sync.Mutex
	state            State
	tradeCondition   bool
	targetHandle     int64
	tradeConfirm     bool
	lastTradeAttempt time.Time
	limiters         map[string]*rate.Limiter
	actionRPS        rate.Limit
	actionBurst      int

	logger *zap.Logger
}

// New creates a Session with its write goroutine started.
func New(handle, accountID, tamerID int64, name string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		Handle:      handle,
		AccountID:   accountID,
		TamerID:     tamerID,
		Name:        name,
		Conn:        conn,
		UsedSlots:   make(map[int]bool),
		SendChan:    make(chan []byte, sendChanBuf),
		Done:        make(chan struct{}),
		state:       StateLoading,
		limiters:    make(map[string]*rate.Limiter),
		actionRPS:   rate.Inf,
		actionBurst: 1,
		logger:      logger,
	}
	if conn != nil {
		go s.writePump()
	}
	return s
}

// SetActionLimit configures the per-action token buckets consulted by
// AllowAction. Applies to limiters created after the call.
func (s *Session) SetActionLimit(rps rate.Limit, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionRPS = rps
	s.actionBurst = burst
}

// AllowAction consumes one token from the named action's bucket.
func (s *Session) AllowAction(action string) bool {
	s.mu.Lock()
	lim, ok := s.limiters[action]
	if !ok {
		lim = rate.NewLimiter(s.actionRPS, s.actionBurst)
		s.limiters[action] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

// writePump drains SendChan and writes binary frames to the connection.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int64("tamer_id", s.TamerID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues a serialized packet non-blocking. Drops if the channel is
// full or the session is closed.
func (s *Session) Send(packet []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- packet:
	case <-s.Done:
	default:
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping packet",
				zap.Int64("tamer_id", s.TamerID))
		}
	}
}

// Close signals the writePump to shut down.
func (s *Session) Close() {
	select {
	case <-s.Done:
	default:
		close(s.Done)
	}
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// IsConnected reports whether the session can still receive packets.
func (s *Session) IsConnected() bool {
	return !s.IsClosed()
}

// SetState moves the session between loading and ready.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// GameState returns the current readiness state.
func (s *Session) GameState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TradeCondition reports whether the session is inside an active trade.
func (s *Session) TradeCondition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tradeCondition
}

// TargetTradeHandle returns the peer's handle, 0 when not trading.
func (s *Session) TargetTradeHandle() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetHandle
}

// TradeConfirm reports whether this side has confirmed.
func (s *Session) TradeConfirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tradeConfirm
}

// StartTrade links the peer handle and raises the trade condition.
func (s *Session) StartTrade(targetHandle int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeCondition = true
	s.targetHandle = targetHandle
	s.tradeConfirm = false
}

// SetTradeConfirm records this side's confirmation.
func (s *Session) SetTradeConfirm(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeConfirm = v
}

// ClearTrade resets all trade state and the staged offer.
func (s *Session) ClearTrade() {
	s.mu.Lock()
	s.tradeCondition = false
	s.targetHandle = 0
	s.tradeConfirm = false
	s.mu.Unlock()
	if s.Offer != nil {
		s.Offer.Clear()
	}
}

// LastTradeAttempt returns the time of the last flagged trade attempt.
func (s *Session) LastTradeAttempt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTradeAttempt
}

// MarkTradeAttempt records now as the last flagged trade attempt.
func (s *Session) MarkTradeAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTradeAttempt = time.Now()
}

// FindFreeDigimonSlot returns the first unoccupied partner slot, or -1.
func (s *Session) FindFreeDigimonSlot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.DigimonSlots; i++ {
		if !s.UsedSlots[i] {
			return i
		}
	}
	return -1
}

// OccupyDigimonSlot marks a partner slot as used. Returns false if it was
// already taken (re-check after an async create).
func (s *Session) OccupyDigimonSlot(slot int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UsedSlots[slot] {
		return false
	}
	s.UsedSlots[slot] = true
	return true
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}
