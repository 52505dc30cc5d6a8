package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"accessops/internal/audit"
	auditoutbox "accessops/internal/audit/outbox"
	"accessops/internal/audit/publisher"
	auditstore "accessops/internal/audit/store"
	identityhandler "accessops/internal/identity/handler"
	identityservice "accessops/internal/identity/service"
	identitystore "accessops/internal/identity/store"
	"accessops/internal/jwttoken"
	"accessops/internal/platform/config"
	"accessops/internal/platform/httpserver"
	"accessops/internal/platform/kafka/producer"
	"accessops/internal/platform/logger"
	"accessops/internal/platform/postgres"
	requesthandler "accessops/internal/request/handler"
	requestservice "accessops/internal/request/service"
	requeststore "accessops/internal/request/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing accessops", "addr", cfg.Addr)

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.TokenTTL)

	userStore := identitystore.NewPostgres(db)
	identitySvc := identityservice.New(userStore, jwtService, log)

	auditStore := auditstore.NewPostgres(db, cfg.AuditTopic)
	recorder := audit.NewRecorder(auditStore, log)

	requestStore := requeststore.NewPostgres(db)
	requestSvc := requestservice.New(
		requestStore,
		newRequestPostgresTx(db),
		recorder,
		log,
		requestservice.NewMetrics(),
	)

	// The outbox publisher relays committed audit events to Kafka. Without
	// brokers configured the rows stay queued in the outbox table.
	var outboxPublisher *publisher.Publisher
	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		kafkaProducer, err = producer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()

		if err := kafkaProducer.EnsureTopic(ctx, cfg.AuditTopic, 3); err != nil {
			log.Error("ensure audit topic failed", "error", err)
			os.Exit(1)
		}

		outboxPublisher = publisher.New(
			auditoutbox.NewPostgres(db),
			kafkaProducer,
			publisher.WithMetrics(publisher.NewMetrics()),
			publisher.WithLogger(log),
		)
	} else {
		log.Warn("KAFKA_BROKERS not set, audit events stay in the outbox table")
	}

	router := chi.NewRouter()
	identityhandler.New(identitySvc, log).Register(router)
	requesthandler.New(requestSvc, log, jwtService).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		if kafkaProducer != nil && !kafkaProducer.Healthy(r.Context()) {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	if outboxPublisher != nil {
		outboxPublisher.Start()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if outboxPublisher != nil {
			if err := outboxPublisher.Stop(shutdownCtx); err != nil {
				log.Warn("outbox publisher stop", "error", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
