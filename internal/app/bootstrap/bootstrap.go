package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	judgingengine "galileo/contexts/competition-core/judging-engine"
	postgresadapter "galileo/contexts/competition-core/judging-engine/adapters/postgres"
	"galileo/contexts/competition-core/judging-engine/application/workers"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	"galileo/internal/platform/config"
	"galileo/internal/platform/db"
	"galileo/internal/platform/httpserver"
	"galileo/internal/platform/messaging"
	"galileo/internal/shared/events"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres       *db.Postgres
	bus            *messaging.Kafka
	timeoutSweeper workers.SessionTimeoutSweeper
	auditRelay     workers.AuditRelay
	sweepEnabled   bool
	relayEnabled   bool
	pollInterval   time.Duration
	logger         *slog.Logger
}

// notificationActions are the relayed audit actions downstream notifiers and
// dashboards listen for.
var notificationActions = []string{
	"level_published",
	"level_unpublished",
	"conflict_of_interest_flagged",
	"scoring_session_timed_out",
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.Migrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := judgingengine.NewModule(judgingengine.Dependencies{
		Projects:    repo,
		Assignments: repo,
		Judges:      repo,
		States:      repo,
		Promotions:  repo,
		Locks:       postgresadapter.NewAdvisoryLocker(pg.DB),
		Audit:       repo,
		AuditOutbox: repo,
		Publisher:   kafka,
		Clock:       postgresadapter.SystemClock{},
		IDGen:       postgresadapter.UUIDGenerator{},
		Policy:      scoringPolicy(cfg),
		MinDwell:    cfg.MinScoringDwell,
		MaxDwell:    cfg.MaxScoringDwell,
		Logger:      logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		bus:      kafka,
		timeoutSweeper: workers.SessionTimeoutSweeper{
			Assignments: repo,
			Audit:       repo,
			Clock:       postgresadapter.SystemClock{},
			MaxDwell:    cfg.MaxScoringDwell,
			Logger:      logger,
		},
		auditRelay: workers.AuditRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		sweepEnabled: cfg.EnableSessionTimeoutSweep,
		relayEnabled: cfg.EnableAuditRelay,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"session_timeout_sweep", w.sweepEnabled,
		"audit_relay", w.relayEnabled,
	)

	if w.relayEnabled {
		if err := w.subscribeNotifications(ctx); err != nil {
			return err
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if w.sweepEnabled {
		group.Go(func() error {
			return w.poll(ctx, func(ctx context.Context) error {
				_, err := w.timeoutSweeper.RunOnce(ctx)
				return err
			})
		})
	}
	if w.relayEnabled {
		group.Go(func() error {
			return w.poll(ctx, w.auditRelay.RunOnce)
		})
	}
	return group.Wait()
}

func (w *WorkerApp) poll(ctx context.Context, run func(context.Context) error) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		if err := run(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// subscribeNotifications attaches the worker's notification consumer to the
// audit topics the relay publishes. Delivery is logged per event until the
// outbound notification channel (email/SMS) is wired.
func (w *WorkerApp) subscribeNotifications(ctx context.Context) error {
	for _, action := range notificationActions {
		topic := "judging.audit." + action
		if err := w.bus.Subscribe(ctx, topic, "galileo-notifications", w.notificationHandler(topic)); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkerApp) notificationHandler(topic string) func(context.Context, []byte) error {
	return func(_ context.Context, payload []byte) error {
		var envelope events.Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return err
		}
		w.logger.Info("audit notification received",
			"event", "bootstrap_notification_received",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"topic", topic,
			"event_type", envelope.EventType,
			"event_id", envelope.EventID,
			"entity_id", envelope.EntityID,
		)
		return nil
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func scoringPolicy(cfg config.Config) entities.ScoringPolicy {
	return entities.ScoringPolicy{
		ArbitrationThreshold: cfg.ArbitrationThreshold,
		MinJudgesPerSection:  cfg.MinJudgesPerSection,
		MinJudgesFallback:    cfg.MinJudgesFallback,
		PromotionBand:        cfg.PromotionBand,
		PointTable:           cfg.PointTable,
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
