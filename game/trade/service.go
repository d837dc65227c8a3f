// Package trade implements the player-to-player exchange flow: proposal,
// staging, two-sided confirmation, and an all-or-nothing commit of items
// and bits between two live sessions.
package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/tamer-online/gameserver/cache"
	"github.com/tamer-online/gameserver/config"
	"github.com/tamer-online/gameserver/game/integrity"
	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/lock"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/gateway"
	"github.com/tamer-online/gameserver/moderation"
	"github.com/tamer-online/gameserver/protocol"
	"github.com/tamer-online/gameserver/retry"
	"github.com/tamer-online/gameserver/security"
	"go.uber.org/zap"
)

// commitGuardTTL bounds how long a pair's commit guard key lives in the
// cache if a crash prevents cleanup.
const commitGuardTTL = 30 * time.Second

// Service coordinates trade sessions between connected players.
type Service struct {
	sessions  *player.SessionManager
	locker    *lock.PairLocker
	validator *integrity.Validator
	sec       *security.Service
	mod       *moderation.Service
	gw        gateway.Gateway
	retrier   *retry.Executor
	cache     cache.Cache
	secCfg    config.SecurityConfig
	logger    *zap.Logger
}

func NewService(
	sessions *player.SessionManager,
	locker *lock.PairLocker,
	validator *integrity.Validator,
	sec *security.Service,
	mod *moderation.Service,
	gw gateway.Gateway,
	retrier *retry.Executor,
	c cache.Cache,
	secCfg config.SecurityConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		sessions:  sessions,
		locker:    locker,
		validator: validator,
		sec:       sec,
		mod:       mod,
		gw:        gw,
		retrier:   retrier,
		cache:     c,
		secCfg:    secCfg,
		logger:    logger,
	}
}

// gate is the entry check shared by every trade operation: the session's
// per-action rate limit and the abuse tracker both have to pass before
// any trade state is touched.
func (t *Service) gate(s *player.Session) bool {
	if !s.AllowAction(security.ActionTrade) {
		t.sec.LogTradeAttempt(s.TamerID, 0, false, "rate limited")
		return false
	}
	if t.sec.IsSuspicious(s.TamerID, security.ActionTrade) {
		t.sec.LogTradeAttempt(s.TamerID, 0, false, "flagged suspicious")
		return false
	}
	return true
}

// Propose opens a trade between s and the session behind targetHandle.
// Both sides get linked and receive the proposal packet.
func (t *Service) Propose(ctx context.Context, s *player.Session, targetHandle int64) {
	if !t.gate(s) {
		return
	}
	if r := t.validator.ValidatePlayerState(s); !r.OK {
		t.sec.LogTradeAttempt(s.TamerID, 0, false, r.Reason)
		return
	}
	if s.TradeCondition() {
		t.sec.LogTradeAttempt(s.TamerID, 0, false, "already trading")
		return
	}
	target, ok := t.sessions.ByHandle(targetHandle)
	if !ok {
		t.sec.LogTradeAttempt(s.TamerID, 0, false, "target not online")
		return
	}
	if r := t.validator.ValidatePlayerState(target); !r.OK || target.TradeCondition() {
		t.sec.LogTradeAttempt(s.TamerID, target.TamerID, false, "target unavailable")
		s.Send(protocol.TradeCancelled(targetHandle))
		return
	}

	s.StartTrade(target.Handle)
	target.StartTrade(s.Handle)
	s.Send(protocol.TradeProposed(target.Handle, target.Name))
	target.Send(protocol.TradeProposed(s.Handle, s.Name))
	t.sec.LogTradeAttempt(s.TamerID, target.TamerID, true, "proposed")
	t.logger.Info("trade proposed",
		zap.Int64("tamer_id", s.TamerID),
		zap.Int64("target_id", target.TamerID))
}

// Accept opens the trade window on the accepting side. The link itself
// was established at proposal time; accept just unlocks staging for both.
func (t *Service) Accept(ctx context.Context, s *player.Session) {
	if !s.TradeCondition() {
		return
	}
	if !t.gate(s) {
		return
	}
	p, ok := t.peer(s)
	if !ok {
		return
	}
	s.Send(protocol.TradeInventoryUnlock(s.Handle))
	p.Send(protocol.TradeInventoryUnlock(p.Handle))
	t.sec.LogTradeAttempt(s.TamerID, p.TamerID, true, "accepted")
}

// peer resolves the session's trade partner or aborts the trade when the
// partner is gone.
func (t *Service) peer(s *player.Session) (*player.Session, bool) {
	handle := s.TargetTradeHandle()
	if handle == 0 {
		return nil, false
	}
	p, ok := t.sessions.ByHandle(handle)
	if !ok || !p.IsConnected() {
		t.Abort(s, "partner disconnected")
		return nil, false
	}
	return p, true
}

// stageable re-validates that the session still owns what it wants to
// stage. Over-held amounts get the same escalation as negative ones;
// any other failure aborts the trade.
func (t *Service) stageable(ctx context.Context, s, p *player.Session, invSlot, amount int16) bool {
	r := t.validator.ValidateInventoryOperation(s, int(invSlot), int(amount))
	if r.OK {
		return true
	}
	if st := s.Inventory.FindBySlot(int(invSlot)); st != nil && st.Amount < int(amount) {
		// Client asked for more than it holds. Treated like a
		// negative amount, not like a plain failure.
		t.handleInvalidAmount(ctx, s, r.Reason)
		return false
	}
	t.sec.LogTradeAttempt(s.TamerID, p.TamerID, false, r.Reason)
	t.Abort(s, "invalid item")
	return false
}

// AddItem stages amount of the item at the session's inventory slot into
// its offer. Ownership is checked before and again after taking the pair
// lock, so staging can never interleave with the pair's commit. Invalid
// amounts are integrity violations and can escalate to a ban on quick
// repetition.
func (t *Service) AddItem(ctx context.Context, s *player.Session, invSlot, amount int16) {
	if !s.TradeCondition() {
		return
	}
	if !t.gate(s) {
		return
	}
	p, ok := t.peer(s)
	if !ok {
		return
	}
	if amount <= 0 {
		t.handleInvalidAmount(ctx, s, fmt.Sprintf("staged amount %d", amount))
		return
	}
	if !t.stageable(ctx, s, p, invSlot, amount) {
		return
	}

	release, err := t.locker.AcquirePair(ctx, s.Handle, p.Handle)
	if err != nil {
		return
	}
	defer release()

	// The pair may have committed or cancelled while we waited.
	if !s.TradeCondition() || !p.TradeCondition() {
		return
	}
	if !t.stageable(ctx, s, p, invSlot, amount) {
		return
	}

	held := s.Inventory.FindBySlot(int(invSlot))
	staged := &item.Stack{
		ItemID: held.ItemID,
		Amount: int(amount),
		Slot:   int(invSlot),
		Info:   held.Info,
	}
	stagingSlot, err := s.Offer.Add(staged)
	if err != nil {
		t.sec.LogTradeAttempt(s.TamerID, p.TamerID, false, err.Error())
		if err == item.ErrAlreadyStaged {
			t.sec.LogSuspiciousActivity(s.TamerID, security.ActionTrade,
				"duplicate staging of same inventory slot")
		}
		t.Abort(s, "staging rejected")
		return
	}

	// Any change to either offer voids earlier confirmations.
	s.SetTradeConfirm(false)
	p.SetTradeConfirm(false)

	pkt := protocol.TradeItemAdded(s.Handle, protocol.StackData{
		ItemID: held.ItemID,
		Amount: int(amount),
		Slot:   stagingSlot,
	}, stagingSlot, int(invSlot))
	s.Send(pkt)
	p.Send(pkt)
	t.sec.LogTradeAttempt(s.TamerID, p.TamerID, true, "item staged")
}

// AddBits stages a currency amount into the session's offer. The staged
// value replaces any previous one. Like AddItem, the balance is checked
// on both sides of the pair lock.
func (t *Service) AddBits(ctx context.Context, s *player.Session, bits int64) {
	if !s.TradeCondition() {
		return
	}
	if !t.gate(s) {
		return
	}
	p, ok := t.peer(s)
	if !ok {
		return
	}
	if bits < 0 || bits > s.Inventory.Bits() {
		t.handleInvalidAmount(ctx, s, fmt.Sprintf("staged %d bits, holds %d", bits, s.Inventory.Bits()))
		return
	}

	release, err := t.locker.AcquirePair(ctx, s.Handle, p.Handle)
	if err != nil {
		return
	}
	defer release()

	if !s.TradeCondition() || !p.TradeCondition() {
		return
	}
	if bits > s.Inventory.Bits() {
		t.handleInvalidAmount(ctx, s, fmt.Sprintf("staged %d bits, holds %d", bits, s.Inventory.Bits()))
		return
	}
	if err := s.Offer.SetBits(bits); err != nil {
		t.handleInvalidAmount(ctx, s, err.Error())
		return
	}

	s.SetTradeConfirm(false)
	p.SetTradeConfirm(false)

	pkt := protocol.TradeBitsAdded(s.Handle, bits)
	s.Send(pkt)
	p.Send(pkt)
	t.sec.LogTradeAttempt(s.TamerID, p.TamerID, true, "bits staged")
}

// RemoveItem unstages the entry at the given staging slot.
func (t *Service) RemoveItem(ctx context.Context, s *player.Session, stagingSlot int) {
	if !s.TradeCondition() {
		return
	}
	if !t.gate(s) {
		return
	}
	p, ok := t.peer(s)
	if !ok {
		return
	}

	release, err := t.locker.AcquirePair(ctx, s.Handle, p.Handle)
	if err != nil {
		return
	}
	defer release()

	if !s.TradeCondition() || !p.TradeCondition() {
		return
	}
	if err := s.Offer.Remove(stagingSlot); err != nil {
		t.sec.LogTradeAttempt(s.TamerID, p.TamerID, false, err.Error())
		return
	}
	s.SetTradeConfirm(false)
	p.SetTradeConfirm(false)

	pkt := protocol.TradeItemRemoved(s.Handle, stagingSlot)
	s.Send(pkt)
	p.Send(pkt)
}

// Confirm records this side's confirmation; once both sides confirm the
// exchange commits. The flag is set under the pair lock so a confirm can
// never land between the peer's commit validation and its exchange.
func (t *Service) Confirm(ctx context.Context, s *player.Session) {
	if !s.TradeCondition() {
		return
	}
	if !t.gate(s) {
		return
	}
	p, ok := t.peer(s)
	if !ok {
		return
	}

	release, err := t.locker.AcquirePair(ctx, s.Handle, p.Handle)
	if err != nil {
		return
	}
	defer release()

	if !s.TradeCondition() || !p.TradeCondition() {
		return
	}
	s.SetTradeConfirm(true)
	pkt := protocol.TradeConfirmed(s.Handle)
	s.Send(pkt)
	p.Send(pkt)

	if !p.TradeConfirm() {
		return
	}
	t.commitLocked(ctx, s, p)
}

// Abort cancels the session's trade from either side, restoring both
// offers and notifying both participants.
func (t *Service) Abort(s *player.Session, reason string) {
	handle := s.TargetTradeHandle()
	s.ClearTrade()
	s.Send(protocol.TradeCancelled(handle))
	s.Send(protocol.TradeInventoryUnlock(s.Handle))
	if p, ok := t.sessions.ByHandle(handle); ok && p.TradeCondition() {
		p.ClearTrade()
		p.Send(protocol.TradeCancelled(s.Handle))
		p.Send(protocol.TradeInventoryUnlock(p.Handle))
	}
	if reason != "" {
		t.logger.Info("trade aborted",
			zap.Int64("tamer_id", s.TamerID),
			zap.String("reason", reason))
	}
}

// AbortOnDisconnect is the disconnect hook. Called with a session that is
// going away; any live trade it participates in is cancelled.
func (t *Service) AbortOnDisconnect(s *player.Session) {
	if !s.TradeCondition() {
		return
	}
	t.Abort(s, "disconnect")
}

// commitLocked performs the atomic exchange between the two confirmed
// sessions. The caller holds the pair lock.
func (t *Service) commitLocked(ctx context.Context, a, b *player.Session) {
	// Guard against a double commit for the same pair. The second caller
	// finds the key and backs off.
	guardKey := "trade:commit:" + lock.PairKey(a.Handle, b.Handle)
	if acquired, err := t.cache.SetNX(ctx, guardKey, "1", commitGuardTTL); err == nil && !acquired {
		t.logger.Warn("duplicate commit attempt", zap.String("key", guardKey))
		return
	}

	// Conditions may have changed since the confirms were recorded.
	if r := t.validator.ValidateTradeIntegrity(a, b); !r.OK {
		_ = t.cache.Del(ctx, guardKey)
		t.sec.LogTradeAttempt(a.TamerID, b.TamerID, false, "commit validation: "+r.Reason)
		t.Abort(a, r.Reason)
		return
	}

	if err := t.exchange(a, b); err != nil {
		_ = t.cache.Del(ctx, guardKey)
		t.sec.LogTradeAttempt(a.TamerID, b.TamerID, false, "exchange: "+err.Error())
		t.Abort(a, err.Error())
		return
	}

	// On success the guard stays until its TTL expires, so a straggling
	// duplicate confirm backs off silently instead of cancelling a trade
	// that already finished.

	// The in-memory exchange is the source of truth. Persistence runs
	// after it and never rolls it back.
	t.persist(ctx, a)
	t.persist(ctx, b)

	for _, s := range []*player.Session{a, b} {
		s.Send(protocol.TradeFinalConfirm(s.Handle))
		s.Send(t.inventoryPacket(s))
		s.Send(protocol.TradeInventoryUnlock(s.Handle))
		s.ClearTrade()
	}
	t.sec.LogTradeAttempt(a.TamerID, b.TamerID, true, "committed")
	t.logger.Info("trade committed",
		zap.Int64("tamer_a", a.TamerID),
		zap.Int64("tamer_b", b.TamerID))
}

// exchange moves staged items and bits between the two inventories in
// four phases, each with its rollback. On any failure both inventories
// end exactly where they started.
func (t *Service) exchange(a, b *player.Session) error {
	offerA := a.Offer.Items()
	offerB := b.Offer.Items()
	bitsA := a.Offer.Bits()
	bitsB := b.Offer.Bits()

	snapA := a.Inventory.Snapshot()
	snapB := b.Inventory.Snapshot()

	if err := a.Inventory.RemoveStacks(offerA); err != nil {
		a.Inventory.Restore(snapA)
		return fmt.Errorf("remove from initiator: %w", err)
	}
	if err := b.Inventory.RemoveStacks(offerB); err != nil {
		a.Inventory.Restore(snapA)
		b.Inventory.Restore(snapB)
		return fmt.Errorf("remove from partner: %w", err)
	}

	if err := t.crossAdd(a, b, offerA, offerB, bitsA, bitsB); err != nil {
		a.Inventory.Restore(snapA)
		b.Inventory.Restore(snapB)
		return fmt.Errorf("cross add: %w", err)
	}
	return nil
}

func (t *Service) crossAdd(a, b *player.Session, offerA, offerB []item.Stack, bitsA, bitsB int64) error {
	if err := b.Inventory.AddStacks(offerA); err != nil {
		return err
	}
	if err := a.Inventory.AddStacks(offerB); err != nil {
		return err
	}
	if err := a.Inventory.RemoveBits(bitsA); err != nil {
		return err
	}
	if err := b.Inventory.RemoveBits(bitsB); err != nil {
		return err
	}
	a.Inventory.AddBits(bitsB)
	b.Inventory.AddBits(bitsA)
	return nil
}

// persist pushes the session's inventory through the gateway with retry.
// A final failure is logged; memory stays authoritative for the session.
func (t *Service) persist(ctx context.Context, s *player.Session) {
	stacks := s.Inventory.Stacks()
	bits := s.Inventory.Bits()
	err := t.retrier.Do(ctx, "trade.UpdateItemList", func() error {
		return t.gw.UpdateItemList(ctx, s.TamerID, stacks, bits)
	})
	if err != nil {
		t.logger.Error("trade persistence failed",
			zap.Int64("tamer_id", s.TamerID),
			zap.Error(err))
	}
}

func (t *Service) inventoryPacket(s *player.Session) []byte {
	stacks := s.Inventory.Stacks()
	data := make([]protocol.StackData, 0, len(stacks))
	for _, st := range stacks {
		data = append(data, protocol.StackData{
			ItemID: st.ItemID,
			Amount: st.Amount,
			Slot:   st.Slot,
		})
	}
	return protocol.LoadInventory(data, s.Inventory.Bits())
}

// handleInvalidAmount records an integrity violation for a nonsensical
// staged amount. A second violation inside the repeat window is treated
// as a live duplication attempt and the account is banned on the spot.
func (t *Service) handleInvalidAmount(ctx context.Context, s *player.Session, detail string) {
	t.sec.LogSuspiciousActivity(s.TamerID, security.ActionTrade, detail)

	window := t.secCfg.BanRepeatWindow
	if window <= 0 {
		window = 5 * time.Second
	}
	repeat := !s.LastTradeAttempt().IsZero() && time.Since(s.LastTradeAttempt()) < window
	s.MarkTradeAttempt()

	if !repeat {
		t.Abort(s, "invalid amount")
		return
	}

	notice := t.mod.BanPermanently(ctx, s.AccountID, s.TamerID, s.Name,
		"item duplication attempt in trade")
	t.Abort(s, "duplication attempt")
	s.Send(protocol.BanUser(moderation.SecondsRemaining(), "Cheating"))
	t.sessions.Range(func(other *player.Session) bool {
		other.Send(protocol.NoticeMessage(notice))
		return true
	})
	s.Close()
}
