package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/account"
	"github.com/suPer8Hu/companion-api/internal/ai"
	"github.com/suPer8Hu/companion-api/internal/chat"
	"github.com/suPer8Hu/companion-api/internal/config"
	"github.com/suPer8Hu/companion-api/internal/httpapi"
	"github.com/suPer8Hu/companion-api/internal/httpapi/handlers"
	"github.com/suPer8Hu/companion-api/internal/insights"
	"github.com/suPer8Hu/companion-api/internal/payment"
	"github.com/suPer8Hu/companion-api/internal/persona"
	"github.com/suPer8Hu/companion-api/internal/queue"
	"github.com/suPer8Hu/companion-api/internal/sms"
	"github.com/suPer8Hu/companion-api/internal/store"
	"github.com/suPer8Hu/companion-api/internal/store/gormstore"
	"github.com/suPer8Hu/companion-api/internal/store/memstore"
	"github.com/suPer8Hu/companion-api/internal/store/rabbitmq"
	"github.com/suPer8Hu/companion-api/internal/store/redisstore"
	"github.com/suPer8Hu/companion-api/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if cfg.SlogLevel() != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStore(cfg)
	defer st.Close()

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	if err := rds.Ping(ctx); err != nil {
		slog.Warn("redis unreachable, otp login will fail until it is up", "addr", cfg.RedisAddr, "err", err)
	}

	provider := openProvider(ctx, cfg)

	personas := persona.NewDefaultRegistry()
	gate := usage.NewGate(cfg.FreeMessageLimit)

	var sender sms.Sender = sms.LogSender{}
	if cfg.SMSEnabled() {
		sender = sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	}

	accounts := account.NewService(st, rds, sender, personas, gate, account.Options{
		JWTSecret:       cfg.JWTSecret,
		JWTTTL:          cfg.JWTTTL,
		OTPTTL:          cfg.OTPTTL,
		OTPCooldown:     cfg.OTPCooldown,
		DevUserID:       cfg.DevUserID,
		PremiumPeriod:   cfg.PremiumPeriod,
		VapiAssistantID: cfg.VapiAssistantID,
		VapiPublicKey:   cfg.VapiPublicKey,
	})

	var gateway payment.Gateway
	if cfg.PaymentsEnabled() {
		gateway = payment.NewCashfreeClient(cfg.CashfreeBaseURL, cfg.CashfreeAppID, cfg.CashfreeSecretKey)
	} else {
		slog.Warn("cashfree credentials not configured, payments disabled")
	}

	publisher := openPublisher(ctx, cfg, st, provider)
	defer publisher.Close()

	h := &handlers.Handler{
		Store:    st,
		ChatSvc:  chat.NewService(st, provider, personas, gate, cfg.ChatContextWindowSize),
		Accounts: accounts,
		Payments: payment.NewService(gateway, st, accounts, cfg.PremiumPrice, cfg.PremiumCurrency),
		Insights: insights.NewService(st, publisher),
		Personas: personas,
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           httpapi.NewRouter(h, cfg),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		// no WriteTimeout: chat responses are long-lived streams
	}

	slog.Info("api listening", "addr", srv.Addr, "ai_provider", cfg.AIProvider, "free_limit", cfg.FreeMessageLimit)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// openStore returns the relational store, or the in-memory store when no DSN
// is configured or the database cannot be reached.
func openStore(cfg config.Config) store.Store {
	if cfg.DBDSN == "" {
		slog.Warn("DB_DSN not set, using in-memory store; data is lost on restart")
		return memstore.New()
	}
	st, err := gormstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("database unavailable, falling back to in-memory store", "driver", cfg.DBDriver, "err", err)
		return memstore.New()
	}
	return st
}

func openProvider(ctx context.Context, cfg config.Config) ai.Provider {
	p, err := ai.NewRegistryFromConfig(cfg).Get(ctx, cfg.AIProvider, "")
	if errors.Is(err, ai.ErrNotConfigured) {
		slog.Warn("ai provider not configured, chat will answer 500", "provider", cfg.AIProvider)
		return nil
	}
	if err != nil {
		slog.Error("invalid ai provider", "provider", cfg.AIProvider, "err", err)
		os.Exit(1)
	}
	return p
}

// openPublisher connects to RabbitMQ when configured. Otherwise summary jobs
// run on an in-process queue served by this process.
func openPublisher(ctx context.Context, cfg config.Config, st store.Store, provider ai.Provider) queue.Publisher {
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err == nil {
			return pub
		}
		slog.Error("rabbitmq unavailable, using in-process queue", "err", err)
	}

	q := queue.NewInMemoryQueue(100)
	processor := insights.NewProcessor(st, provider)
	go queue.RunWorkers(ctx, q, cfg.WorkerConcurrency, processor.Process)
	slog.Info("summary workers running in-process", "concurrency", cfg.WorkerConcurrency)
	return q
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
