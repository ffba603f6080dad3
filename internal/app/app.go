package app

import (
	"context"
	"sync"

	"github.com/NasaVasa/alerty/internal/config"
	"github.com/NasaVasa/alerty/internal/delivery/telegram"
	"github.com/NasaVasa/alerty/internal/infra/db"
	"github.com/NasaVasa/alerty/internal/infra/hyperliquid"
	"github.com/NasaVasa/alerty/internal/infra/log"
	"github.com/NasaVasa/alerty/internal/usecase"
	"go.uber.org/zap"
)

type App struct {
	bot        *telegram.Bot
	dispatcher *telegram.Dispatcher
	stream     *hyperliquid.Stream
	scheduler  *usecase.Scheduler
	logger     *zap.Logger
	cleanupFn  func() error

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := log.NewLogger(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	userRepo := db.NewUserRepository(dbConn)
	alertRepo := db.NewAlertRepository(dbConn)

	infoClient := hyperliquid.NewInfoClient(cfg.HyperliquidInfoURL, cfg.HyperliquidInfoTimeout, cfg.HyperliquidRateLimit, cfg.HyperliquidRateBurst, logger)
	dialer := hyperliquid.NewWSDialer(cfg.HyperliquidWSURL, cfg.StreamReadTimeout, logger)
	stream := hyperliquid.NewStream(dialer, hyperliquid.StreamConfig{
		HeartbeatInterval:    cfg.StreamHeartbeatInterval,
		ReconnectBaseDelay:   cfg.StreamReconnectBaseDelay,
		MaxReconnectAttempts: cfg.StreamReconnectMaxAttempt,
	}, logger)

	api, err := telegram.NewAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	notifier := telegram.NewNotifier(api)
	dispatcher := telegram.NewDispatcher(userRepo, notifier, telegram.DispatcherConfig{}, logger)

	cache := usecase.NewMarketCache(infoClient, cfg.SnapshotTTL, logger)
	evaluator := usecase.NewEvaluator(alertRepo, userRepo, cache, infoClient, dispatcher, nil, logger)
	scheduler := usecase.NewScheduler(alertRepo, evaluator, cache, stream, usecase.SchedulerConfig{
		SweepInterval: cfg.SweepInterval,
		InboxSize:     cfg.PriceInboxSize,
		FillInboxSize: cfg.FillInboxSize,
	}, logger)
	stream.AddListener(scheduler)

	userUC := usecase.NewUserUsecase(userRepo)
	alertUC := usecase.NewAlertUsecase(userRepo, alertRepo)
	handlers := telegram.NewHandlers(userUC, alertUC, logger)
	bot := telegram.NewBot(api, handlers, cfg.TelegramPollTimeout, logger)

	cleanup := func() error {
		sqlDB, err := dbConn.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return &App{
		bot:        bot,
		dispatcher: dispatcher,
		stream:     stream,
		scheduler:  scheduler,
		logger:     logger,
		cleanupFn:  cleanup,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("alerty service starting")

	workCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.dispatcher.Run(workCtx)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.scheduler.Run(workCtx)
	}()

	// A failed first connect keeps retrying in the background; sweeps cover
	// evaluation meanwhile.
	if err := a.stream.Connect(ctx); err != nil {
		a.logger.Warn("stream connect failed", zap.Error(err))
	}

	a.logger.Info("alerty service started")
	return a.bot.Start(ctx)
}

func (a *App) Shutdown() {
	a.logger.Info("alerty service shutting down")
	if err := a.stream.Disconnect(); err != nil {
		a.logger.Warn("stream disconnect failed", zap.Error(err))
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.cleanupFn != nil {
		if err := a.cleanupFn(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
