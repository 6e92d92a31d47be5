package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/infopharma/internal/health"
	"github.com/vladislavdragonenkov/infopharma/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/infopharma/internal/service/catalog"
	"github.com/vladislavdragonenkov/infopharma/internal/service/directory"
	"github.com/vladislavdragonenkov/infopharma/internal/service/idempotency"
	"github.com/vladislavdragonenkov/infopharma/internal/service/ledger"
	"github.com/vladislavdragonenkov/infopharma/internal/service/outbox"
	"github.com/vladislavdragonenkov/infopharma/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/infopharma/internal/version"
)

// Run собирает зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	// Kafka producer опционален: без брокеров события остаются в outbox.
	var kafkaProducer *kafka.Producer
	var eventPublisher domain.OutboxPublisher
	var dlqPublisher domain.OutboxPublisher

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
			eventPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents, kafka.TopicBillingEvents)
			dlqPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue, kafka.TopicDeadLetterQueue)
		}
	}

	ledgerSvc := ledger.New(
		deps.Merchants,
		deps.Products,
		deps.Orders,
		deps.Invoices,
		deps.Payments,
		deps.Outbox,
		deps.Timeline,
		deps.Accounts,
		logger.WithField("component", "ledger"),
	)
	if deps.LastOrderSeq > 0 || deps.LastInvoiceSeq > 0 {
		ledgerSvc.SeedCounters(deps.LastOrderSeq, deps.LastInvoiceSeq)
	}

	directorySvc := directory.New(deps.Merchants, deps.Accounts, logger.WithField("component", "directory"))
	catalogSvc := catalog.New(deps.Products, logger.WithField("component", "catalog"))

	handler := httpapi.NewHandler(ledgerSvc, directorySvc, catalogSvc, logger.WithField("layer", "http"))
	idem := httpapi.NewIdempotencyMiddleware(deps.IdemKeys, cfg.IdempotencyTTL, logger.WithField("component", "idempotency"))

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.Store != nil {
		store := deps.Store
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
	}

	router := httpapi.NewRouter(handler, idem, healthHandler)

	// Фоновые воркеры.
	if eventPublisher != nil {
		worker := outbox.NewWorker(
			deps.Outbox,
			eventPublisher,
			outbox.WithLogger(logger.WithField("component", "outbox_worker")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		)
		go worker.Run(ctx)
	}

	cleanup := idempotency.NewCleanupWorker(
		deps.IdemKeys,
		idempotency.WithLogger(logger.WithField("component", "idempotency_cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatch),
	)
	go cleanup.Run(ctx)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		closeProducer(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		closeProducer(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

func closeProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
