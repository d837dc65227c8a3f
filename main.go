package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tamer-online/gameserver/api/gamews"
	"github.com/tamer-online/gameserver/audit"
	"github.com/tamer-online/gameserver/cache"
	"github.com/tamer-online/gameserver/config"
	dbadapter "github.com/tamer-online/gameserver/db"
	"github.com/tamer-online/gameserver/game/hatch"
	"github.com/tamer-online/gameserver/game/integrity"
	"github.com/tamer-online/gameserver/game/item"
	"github.com/tamer-online/gameserver/game/lock"
	"github.com/tamer-online/gameserver/game/player"
	"github.com/tamer-online/gameserver/game/skill"
	"github.com/tamer-online/gameserver/game/trade"
	"github.com/tamer-online/gameserver/gateway"
	mw "github.com/tamer-online/gameserver/middleware"
	"github.com/tamer-online/gameserver/model"
	"github.com/tamer-online/gameserver/moderation"
	"github.com/tamer-online/gameserver/retry"
	"github.com/tamer-online/gameserver/scheduler"
	"github.com/tamer-online/gameserver/security"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; tokens cannot be issued")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.NewService(db, logger)
	defer auditSvc.Stop()

	// ---- Cache ----
	c, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Item catalog ----
	catalog, err := item.LoadCatalog(cfg.Game.ItemsPath)
	if err != nil {
		log.Fatalf("item catalog: %v", err)
	}
	logger.Info("Item catalog loaded", zap.Int("items", catalog.Len()))

	// ---- Core services ----
	sm := player.NewSessionManager(logger)
	locker := lock.NewPairLocker(cfg.Lock.MaxTokens, cfg.Lock.EvictBatch, logger)
	validator := integrity.NewValidator(catalog, cfg.Game)
	secSvc := security.NewService(cfg.Security, auditSvc, logger)
	retrier := retry.NewExecutor(cfg.Retry, logger)
	gw := gateway.NewGorm(db)
	modSvc := moderation.NewService(gw, retrier, auditSvc, logger)

	tradeSvc := trade.NewService(sm, locker, validator, secSvc, modSvc, gw,
		retrier, c, cfg.Security, logger)
	hatchSvc := hatch.NewService(locker, validator, catalog, secSvc, gw, retrier, logger)
	skillSvc := skill.NewService(catalog, secSvc, gw, retrier, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sweepInterval := cfg.Security.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	sched.Every("security_sweep", sweepInterval, secSvc.Sweep)
	sched.Every("lock_table_report", time.Hour, func() {
		logger.Debug("lock table size", zap.Int("tokens", locker.Len()))
	})

	// ---- Packet dispatcher ----
	dispatcher := gamews.NewDispatcher(logger)
	gamews.RegisterTradeHandlers(dispatcher, tradeSvc)
	gamews.RegisterHatchHandlers(dispatcher, hatchSvc)
	gamews.RegisterSkillHandlers(dispatcher, skillSvc)

	wsHandler := gamews.NewHandler(db, c, cfg, sm, tradeSvc, catalog, dispatcher, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok", "online": sm.Count()})
	})
	r.GET("/ws", wsHandler.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("game server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
