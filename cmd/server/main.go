package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"calorie/internal/auth/events"
	"calorie/internal/auth/gateway"
	"calorie/internal/auth/gateway/gotrue"
	"calorie/internal/auth/gateway/memory"
	"calorie/internal/auth/guard"
	"calorie/internal/auth/state"
	"calorie/internal/auth/store/session"
	"calorie/internal/auth/synchronizer"
	"calorie/internal/meals"
	"calorie/internal/platform/config"
	"calorie/internal/platform/httpserver"
	"calorie/internal/platform/logger"
	"calorie/internal/platform/metrics"
	"calorie/internal/platform/postgres"
	"calorie/internal/platform/redis"
	httptransport "calorie/internal/transport/http"
	"calorie/pkg/platform/circuit"
)

const (
	shutdownGrace     = 10 * time.Second
	transitionBacklog = 256
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// infra holds optional backing services and their health checks.
type infra struct {
	redis   *goredis.Client
	db      *sql.DB
	health  map[string]httptransport.HealthCheck
	closers []func()
}

func (i *infra) close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	inf := &infra{health: make(map[string]httptransport.HealthCheck)}
	defer inf.close()
	if err := connectInfra(ctx, cfg, log, inf); err != nil {
		return err
	}

	gw, autoRefresh, err := buildGateway(cfg.Gateway, cfg.Redis.SessionTTL, log, inf)
	if err != nil {
		return err
	}

	store := state.New()
	recorder := events.NewRecorder(transitionBacklog,
		events.WithRecorderLogger(log),
		events.WithRecorderMetrics(m),
	)
	unsubscribe := store.Subscribe(recorder.Observe)
	defer unsubscribe()

	publisher, err := buildPublisher(ctx, cfg.Kafka, log, inf)
	if err != nil {
		return err
	}

	mealService, err := buildMeals(ctx, log, m, inf)
	if err != nil {
		return err
	}

	syncer := synchronizer.New(gw, store,
		synchronizer.WithLogger(log),
		synchronizer.WithMetrics(m),
		synchronizer.WithTracer(otel.Tracer("calorie/auth")),
		synchronizer.WithStrictTransitions(cfg.Server.DevMode),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:     syncer,
		States:   store,
		Guard:    guard.New(cfg.Routes.SignIn, cfg.Routes.Home),
		Meals:    mealService,
		Logger:   log,
		Metrics:  m,
		Gatherer: registry,
		Health:   inf.health,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if err := syncer.Start(gctx); err != nil {
		return fmt.Errorf("start session synchronizer: %w", err)
	}
	defer syncer.Stop()

	g.Go(func() error {
		return events.NewWorker(publisher, recorder.Inbox(), log,
			events.WithBreaker(circuit.New("auth-transitions"), events.NewLogPublisher(log)),
		).Run(gctx)
	})
	if autoRefresh != nil {
		g.Go(func() error {
			return autoRefresh(gctx, cfg.Gateway.AutoRefreshMargin)
		})
	}
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownGrace)
	})

	log.Info("starting calorie server",
		"addr", cfg.Server.Addr,
		"gateway", cfg.Gateway.Kind,
		"redis", inf.redis != nil,
		"postgres", inf.db != nil,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func connectInfra(ctx context.Context, cfg config.Config, log *slog.Logger, inf *infra) error {
	redisClient, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		inf.redis = redisClient
		inf.health["redis"] = redis.HealthCheck(redisClient)
		inf.closers = append(inf.closers, func() { _ = redisClient.Close() })
		log.Info("redis connected")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if db != nil {
		inf.db = db
		inf.health["postgres"] = db.PingContext
		inf.closers = append(inf.closers, func() { _ = db.Close() })
		log.Info("postgres connected")
	}
	return nil
}

type refresher func(ctx context.Context, margin time.Duration) error

func buildGateway(cfg config.GatewayConfig, sessionTTL time.Duration, log *slog.Logger, inf *infra) (gateway.Gateway, refresher, error) {
	switch cfg.Kind {
	case config.GatewayMemory:
		log.Warn("using in-memory identity provider; accounts are lost on restart")
		return memory.New(cfg.JWTSigningKey,
			memory.WithEmailVerification(cfg.RequireEmailVerification),
			memory.WithAccessTokenTTL(cfg.AccessTokenTTL),
		), nil, nil
	case config.GatewayGoTrue:
		if cfg.URL == "" || cfg.AnonKey == "" {
			return nil, nil, fmt.Errorf("gotrue gateway requires GOTRUE_URL and GOTRUE_ANON_KEY")
		}
		var store session.Store = session.New()
		if inf.redis != nil {
			store = session.NewRedis(inf.redis, session.WithTTL(sessionTTL))
		}
		client := gotrue.New(cfg.URL, cfg.AnonKey, cfg.Timeout,
			gotrue.WithSessionStore(store),
			gotrue.WithLogger(log),
		)
		return client, client.AutoRefresh, nil
	default:
		return nil, nil, fmt.Errorf("unknown AUTH_GATEWAY %q", cfg.Kind)
	}
}

func buildPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, inf *infra) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(log), nil
	}
	pub, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	inf.closers = append(inf.closers, pub.Close)
	inf.health["kafka"] = pub.Ping
	if err := pub.EnsureTopic(ctx, 1, 1); err != nil {
		log.Warn("could not ensure auth transition topic", "topic", cfg.Topic, "error", err)
	}
	return pub, nil
}

func buildMeals(ctx context.Context, log *slog.Logger, m *metrics.Metrics, inf *infra) (*meals.Service, error) {
	var store meals.Store = meals.NewInMemoryStore()
	if inf.db != nil {
		pg := meals.NewPostgresStore(inf.db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	}
	return meals.New(store, meals.WithLogger(log), meals.WithMetrics(m)), nil
}
