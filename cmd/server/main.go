// Command server wires the platform together: stores, services, the event
// dispatcher with its listeners, background loops, and the HTTP router.
// Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	"crewpulse/internal/directory"
	directoryhandler "crewpulse/internal/directory/handler"
	"crewpulse/internal/events"
	"crewpulse/internal/feed"
	feedhandler "crewpulse/internal/feed/handler"
	"crewpulse/internal/leave"
	leavehandler "crewpulse/internal/leave/handler"
	"crewpulse/internal/market"
	markethandler "crewpulse/internal/market/handler"
	"crewpulse/internal/notification"
	notificationhandler "crewpulse/internal/notification/handler"
	orghandler "crewpulse/internal/org/handler"
	orgservice "crewpulse/internal/org/service"
	orgstore "crewpulse/internal/org/store"
	"crewpulse/internal/platform/config"
	"crewpulse/internal/platform/httpserver"
	"crewpulse/internal/platform/logger"
	"crewpulse/internal/platform/metrics"
	"crewpulse/internal/platform/middleware"
	"crewpulse/internal/platform/postgres"
	"crewpulse/internal/platform/redis"
	"crewpulse/internal/recognition"
	recognitionhandler "crewpulse/internal/recognition/handler"
	"crewpulse/internal/survey"
	surveyhandler "crewpulse/internal/survey/handler"
	httptransport "crewpulse/internal/transport/http"
	"crewpulse/pkg/platform/audit"
	auditrelay "crewpulse/pkg/platform/audit/relay"
	auditmemory "crewpulse/pkg/platform/audit/store/memory"
	auditpostgres "crewpulse/pkg/platform/audit/store/postgres"
	auditworker "crewpulse/pkg/platform/audit/worker"
)

const pollSweepBatch = 100

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "server exited:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	var db *sql.DB
	if cfg.HasPostgres() {
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	cache, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if cache != nil {
		defer cache.Close()
	}

	var feedDB *badger.DB
	if cfg.BadgerDir != "" && db == nil {
		feedDB, err = badger.Open(badger.DefaultOptions(cfg.BadgerDir).WithLogger(nil))
		if err != nil {
			return fmt.Errorf("open badger: %w", err)
		}
		defer feedDB.Close()
	}

	// Stores. Postgres when configured, Badger as a single-node alternative
	// for the feed, in-memory otherwise.
	var (
		orgs         orgservice.OrgStore
		dirStore     directory.Store
		feedStore    feed.Store
		kudosStore   recognition.Store
		leaveStore   leave.Store
		surveyStore  survey.Store
		marketStore  market.Store
		inboxStore   notification.Store
		auditStore   audit.Store
		auditPGStore *auditpostgres.Store
	)
	switch {
	case db != nil:
		orgs = orgstore.NewPostgres(db)
		dirStore = directory.NewPostgres(db)
		feedStore = feed.NewPostgres(db)
		kudosStore = recognition.NewPostgres(db)
		leaveStore = leave.NewPostgres(db)
		surveyStore = survey.NewPostgres(db)
		marketStore = market.NewPostgres(db)
		inboxStore = notification.NewPostgres(db)
		auditPGStore = auditpostgres.New(db)
		auditStore = auditPGStore
	default:
		orgs = orgstore.NewInMemory()
		dirStore = directory.NewInMemory()
		if feedDB != nil {
			feedStore = feed.NewBadger(feedDB)
		} else {
			feedStore = feed.NewInMemory()
		}
		kudosStore = recognition.NewInMemory()
		leaveStore = leave.NewInMemory()
		surveyStore = survey.NewInMemory()
		marketStore = market.NewInMemory()
		inboxStore = notification.NewInMemory()
		auditStore = auditmemory.New()
	}

	dispatcher := events.NewDispatcher(log,
		events.WithBufferSize(cfg.EventBufferSize),
		events.WithMetrics(m),
	)

	// Services.
	dirSvc := directory.NewService(dirStore, dispatcher, log)
	orgSvc := orgservice.New(orgs, dispatcher, log,
		orgservice.WithMemberCounter(dirSvc),
		orgservice.WithMetrics(m),
	)

	feedOpts := []feed.Option{feed.WithMetrics(m), feed.WithPageSize(cfg.FeedPageSize)}
	if cache != nil {
		feedOpts = append(feedOpts, feed.WithCache(feed.NewPageCache(cache, cfg.FeedCacheTTL, log, m)))
	}
	feedSvc := feed.NewService(feedStore, dirSvc, dispatcher, log, feedOpts...)

	kudosSvc := recognition.NewService(kudosStore, dirSvc, dispatcher, log, recognition.WithMetrics(m))
	leaveSvc := leave.NewService(leaveStore, dirSvc, dispatcher, log, leave.WithMetrics(m))
	surveySvc := survey.NewService(surveyStore, dirSvc, dispatcher, log, survey.WithMetrics(m))
	marketSvc := market.NewService(marketStore, dirSvc, dispatcher, log, market.WithMetrics(m))
	inboxSvc := notification.NewService(inboxStore, log)

	// Event listeners. Audit sees everything, the inbox only its kinds.
	auditPublisher := audit.NewPublisher(cfg.AuditBufferSize, log, m)
	dispatcher.Subscribe(audit.NewForwarder(auditPublisher))
	inboxHandler := notification.NewEventHandler(inboxSvc, dirSvc, log)
	dispatcher.Subscribe(inboxHandler, inboxHandler.Kinds()...)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        m,
		Verifier:       middleware.NewHMACVerifier(cfg.JWTSigningKey),
		OrgGate:        orgSvc,
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		Org:            orghandler.New(orgSvc, log),
		Modules: []httptransport.Registrar{
			directoryhandler.New(dirSvc, log),
			feedhandler.New(feedSvc, log),
			recognitionhandler.New(kudosSvc, log),
			leavehandler.New(leaveSvc, log),
			surveyhandler.New(surveySvc, log),
			markethandler.New(marketSvc, log),
			notificationhandler.New(inboxSvc, log),
		},
		Health: healthHandler(db, cache),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		return auditworker.New(auditStore, auditPublisher.Events(), log).Run(gctx)
	})

	if cfg.HasKafka() && auditPGStore != nil {
		relay, err := auditrelay.New(auditPGStore, cfg.KafkaBrokers, cfg.AuditTopic, cfg.OutboxRelayEvery, log)
		if err != nil {
			return fmt.Errorf("start audit relay: %w", err)
		}
		g.Go(func() error { return relay.Run(gctx) })
	}

	g.Go(func() error { return sweepDuePolls(gctx, feedSvc, cfg.PollCloseEvery, log) })

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}

// sweepDuePolls periodically closes polls whose deadline has passed.
func sweepDuePolls(ctx context.Context, svc *feed.Service, every time.Duration, log *slog.Logger) error {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			closed, err := svc.CloseDuePolls(ctx, pollSweepBatch)
			if err != nil {
				log.Error("poll close sweep failed", "error", err.Error())
				continue
			}
			if closed > 0 {
				log.Info("closed due polls", "count", closed)
			}
		}
	}
}

// healthHandler reports readiness of the configured backends.
func healthHandler(db *sql.DB, cache *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if cache != nil {
			if err := cache.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
