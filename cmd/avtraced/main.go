// Command avtraced runs the HTTP/websocket front door: POST /runs and
// GET /runs/{id} over the verification engine, plus a live-observation
// websocket for watching DecisionLog entries stream in as a run executes.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/smilemakc/avtrace/internal/condition"
	"github.com/smilemakc/avtrace/internal/config"
	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/icons"
	"github.com/smilemakc/avtrace/internal/llmadjudicate"
	"github.com/smilemakc/avtrace/internal/logging"
	"github.com/smilemakc/avtrace/internal/store"
	"github.com/smilemakc/avtrace/internal/tracing"
	"github.com/smilemakc/avtrace/internal/transport/rest"
	"github.com/smilemakc/avtrace/internal/transport/websocket"
	"github.com/smilemakc/avtrace/internal/verify"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	log.Info().Str("port", cfg.Port).Msg("starting avtraced")

	bunStore := store.NewBunStore(cfg.DatabaseDSN)
	ctx := context.Background()
	if err := bunStore.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database schema")
	}
	defer bunStore.Close()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.OTelEndpoint != "",
		ServiceName: "avtraced",
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    true,
		SampleRate:  1.0,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize tracing, continuing with no-op tracer")
	}
	if tp != nil {
		defer tp.Shutdown(ctx)
	}

	var llmBackend condition.LLMBackend
	if cfg.OpenAIAPIKey != "" {
		llmBackend = llmadjudicate.New(llmadjudicate.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			MaxRetries:  cfg.LLMMaxRetries,
			RetryDelay:  cfg.LLMRetryDelay,
			Temperature: cfg.LLMTemperature,
		})
	}
	var iconDetector condition.IconDetector
	if cfg.IconDetectorURL != "" {
		iconDetector = icons.New(cfg.IconDetectorURL)
	}

	verifier := verify.New(nil, llmBackend, iconDetector, domain.DefaultVerifierOptions())
	verifier.SetTracer(tp.Tracer())

	hub := websocket.NewHub()
	go hub.Run()

	sink := verify.Sink(hub)
	if cfg.ClickHouseDSN != "" {
		chDB, err := sql.Open("clickhouse", cfg.ClickHouseDSN)
		if err != nil {
			log.Error().Err(err).Msg("failed to open clickhouse connection, decision-log analytics disabled")
		} else {
			analyticsSink, err := store.NewAnalyticsSink(store.AnalyticsSinkConfig{DB: chDB, CreateTable: true})
			if err != nil {
				log.Error().Err(err).Msg("failed to initialize analytics sink, decision-log analytics disabled")
			} else {
				defer analyticsSink.Close()
				sink = verify.NewMultiSink(hub, analyticsSink)
			}
		}
	}

	var auth websocket.Authenticator
	if cfg.JWTSecret != "" {
		auth = websocket.NewJWTAuth(cfg.JWTSecret)
	} else {
		auth = websocket.NewNoAuth()
		log.Warn().Msg("JWT_SECRET not set, websocket connections are unauthenticated")
	}

	restServer := rest.NewServer(verifier, bunStore, sink)
	wsHandler := websocket.NewHandler(hub, auth)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", restServer.Handler())

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("shutdown complete")
}
