package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/coding-arena/internal/ai"
	"github.com/suPer8Hu/coding-arena/internal/chat"
	"github.com/suPer8Hu/coding-arena/internal/config"
	"github.com/suPer8Hu/coding-arena/internal/course"
	"github.com/suPer8Hu/coding-arena/internal/db"
	"github.com/suPer8Hu/coding-arena/internal/httpapi"
	"github.com/suPer8Hu/coding-arena/internal/httpapi/handlers"
	"github.com/suPer8Hu/coding-arena/internal/httpapi/middleware"
	"github.com/suPer8Hu/coding-arena/internal/logger"
	"github.com/suPer8Hu/coding-arena/internal/store/rabbitmq"
	"github.com/suPer8Hu/coding-arena/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	lg, err := logger.Setup(logger.Config{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		lg.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	gw := ai.NewGateway(ai.NewDefaultRegistry(cfg.AISettings()), cfg.AIProvider, cfg.DefaultModel())

	policy := chat.DefaultPolicy()
	policy.Options = ai.Options{
		Temperature:     cfg.ChatTemperature,
		TopP:            cfg.ChatTopP,
		MaxOutputTokens: cfg.ChatMaxOutputTokens,
	}
	policy.HistoryLimit = cfg.ChatHistoryLimit
	policy.Timeout = cfg.ChatStreamTimeout
	policy.EndMarker = cfg.ChatStreamEndMarker
	relay := chat.NewRelay(gw, policy)

	courses := course.NewService(course.NewRepo(gdb), gw, policy.Options, cfg.CourseMaxLessons)

	var limiter middleware.Limiter
	if cfg.RateLimitPerMinute > 0 {
		rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		limiter = redisstore.NewLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)
	}

	// async generation is optional; chat keeps working without a broker
	var jobs handlers.JobPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		lg.Warn("rabbitmq unavailable, async jobs disabled", "error", err)
	} else {
		defer pub.Close()
		jobs = pub
	}

	r := httpapi.NewRouter(handlers.NewHandler(cfg, relay, courses, jobs), cfg, limiter)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: chat streams stay open until the model finishes
		IdleTimeout: 2 * time.Minute,
	}

	go func() {
		lg.Info("api listening", "addr", cfg.HTTPAddr, "provider", cfg.AIProvider, "model", cfg.DefaultModel())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server run failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server shutdown failed", "error", err)
	}
}
