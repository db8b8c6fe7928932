package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flitsinc/skyagent/internal/actor"
	"github.com/flitsinc/skyagent/internal/admin"
	"github.com/flitsinc/skyagent/internal/agenttools"
	"github.com/flitsinc/skyagent/internal/ai"
	"github.com/flitsinc/skyagent/internal/api"
	"github.com/flitsinc/skyagent/internal/clock"
	"github.com/flitsinc/skyagent/internal/config"
	"github.com/flitsinc/skyagent/internal/cursor"
	"github.com/flitsinc/skyagent/internal/engine"
	"github.com/flitsinc/skyagent/internal/eventbus"
	"github.com/flitsinc/skyagent/internal/events"
	"github.com/flitsinc/skyagent/internal/logging"
	"github.com/flitsinc/skyagent/internal/profiles"
	"github.com/flitsinc/skyagent/internal/prompt"
	"github.com/flitsinc/skyagent/internal/schema"
	"github.com/flitsinc/skyagent/internal/social"
	"github.com/flitsinc/skyagent/internal/state"
	"github.com/flitsinc/skyagent/internal/stream"
	"github.com/flitsinc/skyagent/internal/threads"
	"github.com/flitsinc/skyagent/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger, closeLog := logging.Setup(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	defer closeLog()
	slog.SetDefault(logger)

	db, err := state.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	store := state.NewStore(db)
	bus := eventbus.NewBus(db)
	threadTracker := threads.NewTracker(store)
	clk := clock.Real()

	identity, err := prompt.LoadIdentity(cfg.IdentityPath)
	if err != nil {
		return err
	}
	systemContext := &prompt.Manager{Identity: identity, Self: cfg.SelfDID, Notes: store}

	decider, err := ai.NewDecider(ai.FromConfig(cfg))
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	loop := &engine.Loop{
		Decider:    decider,
		Tools:      agenttools.Defaults(social.NewRecorder(store, cfg.SelfDID), store, threadTracker, clk),
		Context:    systemContext,
		Bus:        bus,
		StepBudget: cfg.StepBudget,
		Logger:     logger,
	}

	var resolver profiles.Resolver
	if cfg.AppViewURL != "" {
		resolver = profiles.NewCached(profiles.NewHTTPResolver(cfg.AppViewURL), 4096, time.Hour)
	}
	var inbox admin.Inbox
	if cfg.AdminInboxURL != "" {
		inbox = admin.NewHTTPInbox(cfg.AdminInboxURL)
	}

	agent := actor.New(actor.Config{
		Self:               cfg.SelfDID,
		AdminDID:           cfg.AdminDID,
		Topics:             cfg.Collections,
		TickInterval:       cfg.TickInterval,
		ReflectionInterval: cfg.ReflectionInterval,
		ThinkingInterval:   cfg.ThinkingInterval,
		RetentionWindow:    cfg.RetentionWindow,
	}, actor.Deps{
		Conn: stream.NewConsumer(stream.Config{
			Endpoint:     cfg.JetstreamURL,
			SafetyMargin: cfg.SafetyMargin,
			Logger:       logger,
		}),
		Cursor:   cursor.NewTracker(cursor.NewKVStore(store, cursor.DefaultKey), clk, cfg.CursorPersistInterval),
		Threads:  threadTracker,
		Profiles: resolver,
		Loop:     loop,
		Store:    store,
		Inbox:    inbox,
		Bus:      bus,
		Clock:    clk,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		go events.Forward(ctx, bus, pub, schema.ActivityStreams, logger)
		logger.Info("publishing activity to nats", "url", cfg.NATSURL)
	}

	apiServer := &api.Server{
		Agent:     agent,
		Bus:       bus,
		Store:     store,
		Prompt:    systemContext,
		StartedAt: time.Now().UTC(),
		Info: api.DiagnosticsInfo{
			HTTPAddr:     cfg.HTTPAddr,
			DataDir:      cfg.DataDir,
			DBPath:       cfg.DBPath,
			Self:         cfg.SelfDID,
			JetstreamURL: cfg.JetstreamURL,
			Collections:  cfg.Collections,
			LLMProvider:  cfg.LLMProvider,
			LLMModel:     cfg.LLMModel,
			NATS:         cfg.NATSURL != "",
		},
	}
	webServer := &web.Server{Dir: cfg.WebDir}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/", webServer.Handler())

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		logger.Info("skyagentd listening", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	actorDone := make(chan error, 1)
	go func() { actorDone <- agent.Run(ctx) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		runErr = <-actorDone
	case runErr = <-actorDone:
		if runErr != nil {
			logger.Error("actor stopped", "error", runErr)
		}
		cancel()
	case <-ctx.Done():
		runErr = <-actorDone
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
	_ = httpServer.Close()
	return runErr
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
