package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/service-checkout/internal/catalog"
	"github.com/noah-isme/service-checkout/internal/checkout"
	"github.com/noah-isme/service-checkout/internal/config"
	"github.com/noah-isme/service-checkout/internal/events"
	"github.com/noah-isme/service-checkout/internal/health"
	"github.com/noah-isme/service-checkout/internal/obs"
	"github.com/noah-isme/service-checkout/internal/payment"
	"github.com/noah-isme/service-checkout/internal/ratelimit"
	"github.com/noah-isme/service-checkout/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().
		Str("service", "service-checkout").
		Str("env", cfg.AppEnv).
		Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "service-checkout",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			cfg.TracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	probes := map[string]health.Probe{}

	var limiter ratelimit.Limiter = ratelimit.NewMemory("checkout")
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if cfg.MetricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		limiter = ratelimit.SlidingRedis{Client: redisClient, Prefix: "checkout:ratelimit:"}
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	notifiers := []events.Notifier{events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()}}
	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error().Err(err).Msg("close kafka writer")
			}
		}()
		notifiers = append(notifiers, events.KafkaNotifier{Writer: writer, Topic: cfg.KafkaTopic})
		brokers := cfg.KafkaBrokers
		probes["kafka"] = func(ctx context.Context) error { return events.Ping(ctx, brokers) }
		logger.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("kafka notifier enabled")
	}
	bus := &events.Bus{Notifiers: notifiers}

	breakerLogger := logger.With().Str("component", "breaker").Logger()
	gateway, err := payment.NewRevolut(payment.RevolutConfig{
		BaseURL:         cfg.Revolut.BaseURL,
		SecretKey:       cfg.Revolut.SecretKey,
		WebhookSecret:   cfg.Revolut.WebhookSecret,
		DefaultCurrency: cfg.Revolut.DefaultCurrency,
		LogRawResponses: cfg.Revolut.LogRawResponses,
		Timeout:         cfg.Revolut.RequestTimeout,
		RetryAttempts:   cfg.Revolut.RetryAttempts,
		RetryDelay:      cfg.Revolut.RetryDelay,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:       payment.ProviderRevolut,
			MinRequests:  5,
			FailureRatio: 0.5,
			OpenFor:      30 * time.Second,
			Logger:       &breakerLogger,
		}),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise payment gateway")
	}
	logger.Info().Str("revolut_env", cfg.Revolut.Env).Str("base_url", cfg.Revolut.BaseURL).Msg("payment gateway configured")
	if gateway.SignatureBypassed() {
		if cfg.Revolut.InsecureSkipVerify {
			logger.Warn().Msg("REVOLUT_WEBHOOK_SECRET not set; webhook signatures will NOT be verified")
		} else {
			logger.Warn().Msg("REVOLUT_WEBHOOK_SECRET not set; webhook deliveries will be refused")
		}
	}

	cat := catalog.Default()
	handler := newRouter(routerDeps{
		cfg:      cfg,
		logger:   logger,
		catalog:  cat,
		checkout: checkout.NewService(cat, gateway, cfg.Revolut.DefaultCurrency, logger),
		webhook: payment.Webhook{
			Verifier:      gateway,
			Handlers:      payment.BusHandlers{Bus: bus},
			AllowUnsigned: cfg.Revolut.InsecureSkipVerify,
			Logger:        logger,
			MaxBodyBytes:  payment.DefaultMaxWebhookBytes,
		},
		limiter: limiter,
		probes:  probes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}
