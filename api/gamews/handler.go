package gamews

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tamer-online/gameserver/cache"
	"github.com/tamer-online/gameserver/config"
	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/game/trade"
	mw "github.com/tamer-online/gameserver/middleware"
	"github.com/tamer-online/gameserver/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// handleSeq issues unique general handles for the lifetime of the process.
var handleSeq atomic.Int64

// Handler is the Gin handler for GET /ws.
type Handler struct {
	db         *gorm.DB
	cache      cache.Cache
	sec        config.SecurityConfig
	game       config.GameConfig
	tradeCfg   config.TradeConfig
	sm         *player.SessionManager
	tradeSvc   *trade.Service
	catalog    *item.Catalog
	dispatcher *Dispatcher
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	db *gorm.DB,
	c cache.Cache,
	cfg *config.Config,
	sm *player.SessionManager,
	tradeSvc *trade.Service,
	catalog *item.Catalog,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		db:         db,
		cache:      c,
		sec:        cfg.Security,
		game:       cfg.Game,
		tradeCfg:   cfg.Trade,
		sm:         sm,
		tradeSvc:   tradeSvc,
		catalog:    catalog,
		dispatcher: dispatcher,
		logger:     logger,
	}
	allowed := cfg.Security.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.cache.Exists(ctx, "session:"+tokenStr)
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	var tamer model.Tamer
	if err := h.db.Where("id = ? AND account_id = ?", claims.TamerID, claims.AccountID).
		First(&tamer).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown tamer"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.New(handleSeq.Add(1), claims.AccountID, tamer.ID, tamer.Name, conn, h.logger)
	sess.Addr = c.ClientIP()
	sess.SetActionLimit(rate.Limit(h.sec.ActionRPS), h.sec.ActionBurst)
	if err := h.loadState(sess, &tamer); err != nil {
		h.logger.Error("session load failed",
			zap.Int64("tamer_id", tamer.ID), zap.Error(err))
		sess.Close()
		return
	}
	sess.SetState(player.StateReady)

	if displaced := h.sm.Register(sess); displaced != nil {
		h.tradeSvc.AbortOnDisconnect(displaced)
	}
	h.logger.Info("player connected",
		zap.Int64("tamer_id", tamer.ID),
		zap.Int64("handle", sess.Handle),
		zap.String("ip", sess.Addr))
	h.readPump(sess)
}

// loadState hydrates the in-memory session from the persisted rows.
func (h *Handler) loadState(s *player.Session, tamer *model.Tamer) error {
	s.DigimonSlots = tamer.DigimonSlots
	if s.DigimonSlots == 0 {
		s.DigimonSlots = h.game.DigimonSlots
	}
	s.Incubator = player.Incubator{
		EggID:      tamer.IncubatorEgg,
		HatchLevel: tamer.IncubatorLvl,
	}

	s.Inventory = item.NewInventory(h.game.InventoryCapacity)
	s.Inventory.SetBits(tamer.Bits)
	s.Offer = item.NewOffer(h.tradeCfg.MaxItems)

	var rows []model.InventoryRow
	if err := h.db.Where("tamer_id = ?", tamer.ID).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.Inventory.SetSlot(row.Slot, row.ItemID, row.Amount,
			h.catalog.Lookup(row.ItemID)); err != nil {
			return err
		}
	}

	var digimon []model.Digimon
	if err := h.db.Where("tamer_id = ?", tamer.ID).Find(&digimon).Error; err != nil {
		return err
	}
	for i := range digimon {
		s.UsedSlots[digimon[i].Slot] = true
	}
	if len(digimon) > 0 {
		active := &digimon[0]
		var evo model.Evolution
		err := h.db.Where("digimon_id = ? AND unlocked = ?", active.ID, true).
			Order("id").First(&evo).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == nil {
			s.Partner = &player.Partner{
				DigimonID:   active.ID,
				EvolutionID: evo.ID,
				BaseType:    active.BaseType,
				FormSlot:    1,
				Rank:        evo.Type,
				Skills: []player.PartnerSkill{
					{SkillID: 1, Level: 1, MaxLevel: evo.SkillMaxLevel},
					{SkillID: 2, Level: 1, MaxLevel: evo.SkillMaxLevel},
					{SkillID: 3, Level: 1, MaxLevel: evo.SkillMaxLevel},
				},
			}
		}
	}
	return nil
}

// readPump reads frames from the connection and dispatches them. It is
// the session's worker goroutine; returning tears the session down.
func (h *Handler) readPump(s *player.Session) {
	defer h.handleDisconnect(s)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		msgType, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("tamer_id", s.TamerID),
					zap.Error(err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		s.SetReadDeadline()
		h.dispatcher.Dispatch(s, raw)
	}
}

// handleDisconnect cleans up after the connection closes: any live trade
// is aborted for both sides before the session leaves the registry.
func (h *Handler) handleDisconnect(s *player.Session) {
	s.Close()
	h.tradeSvc.AbortOnDisconnect(s)
	h.sm.Unregister(s)
	h.logger.Info("player disconnected",
		zap.Int64("tamer_id", s.TamerID),
		zap.Int64("handle", s.Handle))
}
