package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/coding-arena/internal/ai"
	"github.com/suPer8Hu/coding-arena/internal/config"
	"github.com/suPer8Hu/coding-arena/internal/course"
	"github.com/suPer8Hu/coding-arena/internal/db"
	"github.com/suPer8Hu/coding-arena/internal/logger"
	"github.com/suPer8Hu/coding-arena/internal/store/rabbitmq"
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

	// Provider registry (route by "provider:model")
	gw := ai.NewGateway(ai.NewDefaultRegistry(cfg.AISettings()), cfg.AIProvider, cfg.DefaultModel())

	svc := course.NewService(course.NewRepo(gdb), gw, ai.Options{
		Temperature:     cfg.ChatTemperature,
		TopP:            cfg.ChatTopP,
		MaxOutputTokens: cfg.ChatMaxOutputTokens,
	}, cfg.CourseMaxLessons)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitURL,
		Queue:       cfg.RabbitQueue,
		Concurrency: cfg.WorkerConcurrency,
		MaxRetries:  cfg.WorkerMaxRetries,
	}, lg, func(ctx context.Context, jobID string) error {
		// one course can take many model calls
		jctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		return svc.RunJob(jctx, jobID)
	})

	if err := consumer.Run(ctx); err != nil {
		lg.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
