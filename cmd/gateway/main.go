package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medvoice/realtime-gateway/internal/api"
	"github.com/medvoice/realtime-gateway/internal/config"
	"github.com/medvoice/realtime-gateway/internal/db"
	"github.com/medvoice/realtime-gateway/internal/realtime"
	redisclient "github.com/medvoice/realtime-gateway/internal/redis"
	"github.com/medvoice/realtime-gateway/internal/scheduling"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "gateway").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("gateway starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduling store: Postgres when a DSN is configured, in-memory otherwise.
	var store scheduling.Store
	var pgPool *pgxpool.Pool
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pool, err := db.Connect(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pool.Close()
		if err := db.EnsureSchema(rootCtx, pool); err != nil {
			log.Fatal().Err(err).Msg("schema error")
		}
		store = scheduling.NewPgStore(pool)
		pgPool = pool
		log.Info().Msg("connected to Postgres")
	} else {
		mem := scheduling.NewMemoryStore()
		seedDevData(mem)
		store = mem
		log.Warn().Msg("POSTGRES_DSN not set, using in-memory store with sample data")
	}

	// Booking locks: Redis when configured, in-process otherwise.
	var locker scheduling.Locker
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewDoctorLocker(rdb, cfg.LockTTL)
		log.Info().Msg("connected to Redis")
	} else {
		locker = scheduling.NewLocalLocker()
		log.Warn().Msg("REDIS_ADDR not set, using in-process booking locks")
	}

	resolver := scheduling.NewResolver(store, locker)
	registry := realtime.NewSchedulingRegistry(store, resolver, log)

	router := api.NewRouter(api.RouterConfig{
		Store:    store,
		Resolver: resolver,
		Proxy: api.ProxyDeps{
			Dialer: &realtime.OpenAIDialer{
				URL:    cfg.RealtimeURL,
				APIKey: cfg.OpenAIAPIKey,
			},
			Registry: registry,
			Instructions: func(ctx context.Context) (string, error) {
				return realtime.BuildInstructions(ctx, store)
			},
			DefaultModel: cfg.RealtimeModel,
			Log:          log,
		},
		Sessions: api.SessionTokenConfig{
			URL:          cfg.SessionsURL,
			APIKey:       cfg.OpenAIAPIKey,
			DefaultModel: cfg.RealtimeModel,
			DefaultVoice: cfg.RealtimeVoice,
		},
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
		Log:     log,
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// seedDevData gives the in-memory dev store the sample clinic the voice
// agent can be exercised against without a database.
func seedDevData(store *scheduling.MemoryStore) {
	mustWindow := func(start, end string) scheduling.TimeWindow {
		w, err := scheduling.ParseTimeWindow(start, end)
		if err != nil {
			panic(err)
		}
		return w
	}

	store.PutDoctor(scheduling.Doctor{
		ID:             uuid.MustParse("7f8d2c1e-0000-4000-8000-000000000001"),
		Name:           "Dr. Ahmed Hassan",
		Specialization: "Orthodontics",
		Availability: []scheduling.DaySchedule{
			{DayOfWeek: 0, Windows: []scheduling.TimeWindow{mustWindow("09:00", "12:00"), mustWindow("13:00", "17:00")}},
			{DayOfWeek: 2, Windows: []scheduling.TimeWindow{mustWindow("10:00", "18:00")}},
		},
	})
	store.PutDoctor(scheduling.Doctor{
		ID:             uuid.MustParse("7f8d2c1e-0000-4000-8000-000000000002"),
		Name:           "Dr. Sara Mostafa",
		Specialization: "Prosthodontics",
		Availability: []scheduling.DaySchedule{
			{DayOfWeek: 1, Windows: []scheduling.TimeWindow{mustWindow("08:00", "16:00")}},
			{DayOfWeek: 4, Windows: []scheduling.TimeWindow{mustWindow("09:00", "12:00"), mustWindow("13:00", "15:00")}},
		},
	})
	store.PutDoctor(scheduling.Doctor{
		ID:             uuid.MustParse("7f8d2c1e-0000-4000-8000-000000000003"),
		Name:           "Dr. Mohamed Ali",
		Specialization: "Endodontics",
		Availability: []scheduling.DaySchedule{
			{DayOfWeek: 3, Windows: []scheduling.TimeWindow{mustWindow("10:00", "14:00")}},
			{DayOfWeek: 5, Windows: []scheduling.TimeWindow{mustWindow("09:00", "13:00")}},
		},
	})
}
