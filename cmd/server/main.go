package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/dispatch-engine/internal/config"
	"github.com/ignatzorin/dispatch-engine/internal/db"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/goroutine"
	httpRouter "github.com/ignatzorin/dispatch-engine/internal/http/router"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/feed"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/persistence"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/pricing"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/roster"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/handler"
	"github.com/ignatzorin/dispatch-engine/internal/logger"
	"github.com/ignatzorin/dispatch-engine/internal/metrics"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/clock"
	"github.com/ignatzorin/dispatch-engine/internal/service"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/dispatch"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/quote"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/request"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
	"github.com/ignatzorin/dispatch-engine/internal/worker"
	"github.com/ignatzorin/dispatch-engine/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.IsProduction())
	metrics.RegisterDefault()

	// Хранилище: PostgreSQL, если задан DATABASE_URL, иначе память.
	var (
		dbConn  *sqlx.DB
		store   repository.RequestStore
		opsList repository.OperatorRoster
	)
	if cfg.DatabaseURL != "" {
		dbConn, err = db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
			logger.Log.Fatalf("main: ошибка миграций: %v", err)
		}
		store = persistence.NewPostgresStore(dbConn)
		opsList = roster.NewCachedRoster(roster.NewPostgresRoster(dbConn), cfg.RosterCacheTTL)
	} else {
		logger.Log.Warn("main: DATABASE_URL не задан, заявки хранятся в памяти")
		store = persistence.NewMemoryStore()
		memRoster := roster.NewMemoryRoster()
		if cfg.RosterFile != "" {
			ops, err := roster.LoadFile(cfg.RosterFile)
			if err != nil {
				logger.Log.Fatalf("main: %v", err)
			}
			for _, op := range ops {
				memRoster.Upsert(op)
			}
			logger.Log.WithField("operators", len(ops)).Info("main: реестр исполнителей загружен из файла")
		}
		opsList = memRoster
	}

	// Лента событий: Redis для нескольких экземпляров, иначе в пределах процесса.
	var (
		broker feed.Broker = feed.NewMemoryBroker()
		redis  handler.Pinger
	)
	if cfg.RedisURL != "" {
		rb, err := feed.NewRedisBroker(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("main: некорректный REDIS_URL: %v", err)
		}
		if err := rb.Ping(ctx); err != nil {
			logger.Log.Fatalf("main: redis недоступен: %v", err)
		}
		defer rb.Close()
		broker, redis = rb, rb
	}

	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	publisher := feed.NewFanout(ws.NewHubPublisher(hub), feed.NewBrokerPublisher(broker))
	runner := unitofwork.NewRunner(store, publisher)

	pool := workerpool.New(cfg.SweepWorkers)
	defer pool.StopWait()

	clk := clock.System()
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	settings := dispatch.Settings{
		Mode:      cfg.DispatchMode,
		EntryTTL:  cfg.DispatchEntryTTL,
		Exhausted: cfg.ExhaustedPolicy,
		Tiers:     cfg.Tiers,
	}

	expireQuotes := quote.NewExpireQuotesUseCase(runner, pool)
	sweepDispatch := dispatch.NewSweepExpiredUseCase(runner, pool, settings)
	sweeper := worker.NewSweeper(cfg.SweepInterval, clk).
		Add("quotes", expireQuotes).
		Add("dispatch", sweepDispatch)
	sweeper.Start(ctx)
	// до pool.StopWait: проход не должен отправлять задачи в остановленный пул
	defer sweeper.Wait()

	eventsUC := request.NewListEventsUseCase(store)
	handlers := httpRouter.Handlers{
		Request: handler.NewRequestHandler(handler.RequestUseCases{
			Create:       request.NewCreateRequestUseCase(runner, cfg.QuoteWindow),
			Get:          request.NewGetRequestUseCase(store),
			List:         request.NewListRequestsUseCase(store),
			Events:       eventsUC,
			Eligible:     eligibility.NewListEligibleOperatorsUseCase(store, opsList, cfg.Tiers),
			Offer:        request.NewOfferToOperatorUseCase(runner, opsList, cfg.Tiers),
			RespondOffer: request.NewRespondToOfferUseCase(runner),
			StartWork:    request.NewStartWorkUseCase(runner),
			Complete:     request.NewCompleteUseCase(runner),
			Dispute:      request.NewDisputeUseCase(runner),
			Resolve:      request.NewResolveDisputeUseCase(runner),
			Cancel:       request.NewCancelRequestUseCase(runner),
		}, clk),
		Quote: handler.NewQuoteHandler(handler.QuoteUseCases{
			Submit:           quote.NewSubmitQuoteUseCase(runner, opsList, pricing.NewTableCalculator(cfg.Pricing), cfg.Tiers, cfg.QuoteTTL),
			List:             quote.NewListQuotesUseCase(store),
			Get:              quote.NewGetQuoteUseCase(store),
			Counter:          quote.NewCounterQuoteUseCase(runner),
			RespondToCounter: quote.NewRespondToCounterUseCase(runner, cfg.QuoteTTL),
			Accept:           quote.NewAcceptQuoteUseCase(runner),
			Decline:          quote.NewDeclineQuoteUseCase(runner),
			Withdraw:         quote.NewWithdrawQuoteUseCase(runner),
		}, clk),
		Dispatch: handler.NewDispatchHandler(
			dispatch.NewStartRunUseCase(runner, opsList, settings),
			dispatch.NewGetRunUseCase(store),
			dispatch.NewRecordResponseUseCase(runner, settings),
			clk,
		),
		Stream: handler.NewStreamHandler(broker, eventsUC),
		Admin:  handler.NewAdminHandler(sweeper),
		WS:     handler.NewWSHandler(hub, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(dbConn, redis),
	}

	engine := httpRouter.SetupRouter(cfg, handlers, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала и ждём текущие запросы.
	shutdownDone := make(chan struct{})
	goroutine.SafeGo(func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("main: ошибка остановки http сервера: %v", err)
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
	<-shutdownDone
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
