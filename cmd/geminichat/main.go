package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/gemini-chat/internal/chat"
	"github.com/comigor/gemini-chat/internal/config"
	"github.com/comigor/gemini-chat/internal/history"
	"github.com/comigor/gemini-chat/internal/kvstore"
	"github.com/comigor/gemini-chat/internal/llm"
	"github.com/comigor/gemini-chat/internal/logger"
	httpserver "github.com/comigor/gemini-chat/internal/server"
	"github.com/comigor/gemini-chat/pkg/tools"
)

var version = "dev"

func main() {
	mcpMode := flag.Bool("mcp", false, "serve chat tools over MCP on stdio instead of HTTP")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *mcpMode {
		// stdout carries the protocol
		logger.SetOutput(os.Stderr)
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := kvstore.Open(cfg.Storage)
	if err != nil {
		logger.L.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	gen, err := llm.NewGenerator(cfg.LLM)
	if err != nil {
		logger.L.Error("failed to create llm client", "error", err)
		os.Exit(1)
	}

	store := history.NewStore(ctx, history.NewSlotRepository(kv))
	settings := chat.NewSettingsStore(kv, chat.DefaultSettings(cfg.LLM))
	conv := chat.New(store, gen, settings, llm.Options{
		TopP:            cfg.LLM.TopP,
		TopK:            cfg.LLM.TopK,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	})

	if *mcpMode {
		manager := tools.ChatTools(conv)
		logger.L.Info("serving MCP on stdio", "tools", manager.Names())
		if err := server.ServeStdio(tools.NewMCPServer(manager, version)); err != nil {
			logger.L.Error("mcp server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if conv.Settings(ctx).APIKey == "" {
		logger.L.Warn("no API key configured; set llm.api_key or PUT /api/settings")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           httpserver.New(conv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L.Warn("shutdown error", "error", err)
		}
	}()

	logger.L.Info("starting server", "address", srv.Addr, "sessions", len(store.Sessions()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}
