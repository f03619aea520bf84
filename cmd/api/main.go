package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-plano/internal/checkout"
	"github.com/noah-isme/backend-plano/internal/common"
	"github.com/noah-isme/backend-plano/internal/config"
	"github.com/noah-isme/backend-plano/internal/configurator"
	"github.com/noah-isme/backend-plano/internal/events"
	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/health"
	"github.com/noah-isme/backend-plano/internal/lock"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/obs"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/ratelimit"
	"github.com/noah-isme/backend-plano/internal/resilience"
	"github.com/noah-isme/backend-plano/internal/security"
	"github.com/noah-isme/backend-plano/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "plano")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "plano-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	formatter, err := money.NewFormatter(cfg.Money)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise formatter")
	}
	validator, err := form.NewValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise validator")
	}
	engine := pricing.NewEngine(cfg.Rates)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store       session.Store
		locker      lock.Locker
		limiter     ratelimit.Limiter
		redisClient *redis.Client
		checks      = map[string]health.Pinger{}
	)
	if cfg.RedisURL != "" {
		redisClient = newRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		breaker := resilience.NewBreaker(cfg.StoreBreaker.MinRequests, cfg.StoreBreaker.FailureRatio, cfg.StoreBreaker.OpenFor).
			WithTarget("session_store").
			WithLogger(logger.With().Str("component", "sessions").Logger())
		store = session.Guarded{Store: session.NewRedisStore(redisClient, "plano:session:"), Breaker: breaker}
		locker = lock.Redis{R: redisClient, Prefix: "plano:lock:"}
		limiter = ratelimit.SlidingRedis{Client: redisClient, Prefix: "plano:ratelimit:"}
		checks["redis"] = health.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	} else {
		memory := session.NewMemoryStore()
		go sweepSessions(ctx, memory, time.Minute, logger)
		store = memory
		locker = lock.NewLocal()
		limiter = ratelimit.NewMemory("plano:ratelimit:")
		logger.Warn().Msg("REDIS_URL not set, sessions are kept in process memory")
	}
	checks["sessions"] = store

	bus := &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()},
		events.MetricsNotifier{},
	}}
	submitter := newSubmitter(cfg, bus, logger)

	panels := &configurator.Service{
		Store:  store,
		Locker: locker,
		Engine: engine,
		TTL:    cfg.SessionTTL,
		Logger: logger,
	}
	wizards := &checkout.Service{
		Store:          store,
		Locker:         locker,
		Engine:         engine,
		Validator:      validator,
		Submitter:      submitter,
		Events:         bus,
		TTL:            cfg.SessionTTL,
		InheritBilling: cfg.InheritBilling,
		Logger:         logger,
	}

	submitLimit := ratelimit.Handler{
		Limiter: limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("checkout-submit"),
			Window: cfg.SubmitRateWindow,
			Max:    cfg.SubmitRateMax,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	idem := common.Idem{R: redisClient, TTL: 24 * time.Hour, Prefix: "plano:idem:"}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}
	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		pprofHandler = protectPprof(newPprofMux(), user, pass)
	}

	r := newRouter(routerDeps{
		Logger:        logger,
		HTTPMetrics:   httpMetrics,
		Tracing:       tracingEnabled,
		ExposeMetrics: metricsEnabled,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		Headers: security.Headers{
			Enable:     cfg.Security.Headers,
			EnableHSTS: cfg.Security.HSTS,
			HSTSMaxAge: cfg.Security.HSTSMaxAge,
		},
		BodyLimit: security.BodyLimit{Max: cfg.Security.MaxBodyBytes},
		Pprof:     pprofHandler,
		Health: health.Handler{
			Checks:  checks,
			Timeout: envDurationMillis("HEALTH_READY_TIMEOUT_MS", 300),
		},
		Pricing:      &pricing.Handler{Engine: engine, Formatter: formatter},
		Configurator: &configurator.Handler{Svc: panels, Formatter: formatter},
		Checkout: &checkout.Handler{
			Svc:       wizards,
			Snapshots: panels,
			Formatter: formatter,
			Submit: func(next http.Handler) http.Handler {
				return submitLimit.Middleware(idem.Middleware(next))
			},
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Bool("redis", redisClient != nil).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func newSubmitter(cfg *config.Config, bus *events.Bus, logger zerolog.Logger) checkout.Submitter {
	switch cfg.Submitter {
	case config.SubmitterLog:
		return checkout.LogSubmitter{Logger: logger.With().Str("component", "checkout").Logger()}
	default:
		return checkout.EventSubmitter{Bus: bus}
	}
}

func newRedis(ctx context.Context, url string, metricsEnabled bool, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func sweepSessions(ctx context.Context, store *session.MemoryStore, every time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug().Int("expired", n).Msg("sessions swept")
			}
		}
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
