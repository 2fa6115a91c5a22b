// Package main provides the LINE bot server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gordonsay/goudan-linebot-go/internal/bot"
	"github.com/gordonsay/goudan-linebot-go/internal/config"
	"github.com/gordonsay/goudan-linebot-go/internal/line"
	"github.com/gordonsay/goudan-linebot-go/internal/logger"
	"github.com/gordonsay/goudan-linebot-go/internal/metrics"
	"github.com/gordonsay/goudan-linebot-go/internal/provider"
	"github.com/gordonsay/goudan-linebot-go/internal/sentry"
	"github.com/gordonsay/goudan-linebot-go/internal/session"
	"github.com/gordonsay/goudan-linebot-go/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log.Info("Starting Goudan LineBot Server")

	if cfg.SentryEnabled {
		if err := sentry.Initialize(sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			log.WithError(err).Warn("Failed to initialize Sentry, error tracking disabled")
		} else if sentry.IsEnabled() {
			log.Info("Sentry initialized")
		}
	}

	// Prometheus registry with runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())

	m := metrics.New(registry)
	log.Info("Metrics initialized")

	lineClient, err := line.NewClient(cfg.LineChannelToken)
	if err != nil {
		log.WithError(err).Error("Failed to create LINE client")
		os.Exit(1)
	}

	deliverer := line.NewDeliverer(line.DelivererConfig{
		Client:              lineClient,
		Logger:              log,
		Metrics:             m,
		GlobalRateRPS:       cfg.Bot.GlobalRateRPS,
		MaxMessagesPerReply: cfg.Bot.MaxMessagesPerReply,
		QuotaNoticeRetries:  cfg.Bot.QuotaNoticeRetries,
		QuotaNoticeDelay:    cfg.Bot.QuotaNoticeBaseDelay,
	})

	chat := provider.NewChat(cfg.OpenAIAPIKey, cfg.GroqAPIKey, log, m)
	images := provider.NewImageGenerator(cfg.OpenAIAPIKey, log, m)

	var searcher bot.SearchProvider
	if cfg.SearchEnabled() {
		searcher = provider.NewSearcher(cfg.GoogleSearchKey, cfg.GoogleSearchCX, cfg.OpenAIAPIKey, log, m)
		log.Info("Google search enabled")
	} else {
		log.Info("Google search keys not configured, search disabled")
	}

	transcriber, err := provider.NewTranscriber(cfg.LineChannelToken, cfg.OpenAIAPIKey, log, m)
	if err != nil {
		log.WithError(err).Error("Failed to create transcriber")
		os.Exit(1)
	}

	translator, err := provider.NewTranslator(context.Background(), cfg.OpenAIAPIKey, cfg.GeminiAPIKey, log, m)
	if err != nil {
		log.WithError(err).Error("Failed to create translator")
		os.Exit(1)
	}

	router := bot.NewRouter(bot.RouterConfig{
		Store:      session.NewMemory(),
		Chat:       chat,
		Images:     images,
		Search:     searcher,
		Translator: translator,
		Transcribe: transcriber,
		Config:     cfg,
		Logger:     log,
	})
	log.Info("Bot router created")

	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		BotConfig:     &cfg.Bot,
		Router:        router,
		Deliverer:     deliverer,
		Metrics:       m,
		Logger:        log,
	})
	log.Info("Webhook handler created")

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(securityHeadersMiddleware())
	engine.Use(loggingMiddleware(log))
	if sentry.IsEnabled() {
		engine.Use(sentryMiddleware())
	}

	setupRoutes(engine, cfg, webhookHandler, registry)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Let in-flight webhook events finish before exiting.
	if err := webhookHandler.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Timeout waiting for event processing to finish")
	}

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	log.Info("Server stopped")
}
