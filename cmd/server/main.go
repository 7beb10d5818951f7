package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	academicbiz "github.com/aylahq/ayla-backend/internal/academic/biz"
	academicdata "github.com/aylahq/ayla-backend/internal/academic/data"
	academicservice "github.com/aylahq/ayla-backend/internal/academic/service"
	"github.com/aylahq/ayla-backend/internal/conf"
	"github.com/aylahq/ayla-backend/internal/data"
	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/mailer"
	"github.com/aylahq/ayla-backend/internal/pkg/tokenizer"
	"github.com/aylahq/ayla-backend/internal/server"
	shadowbiz "github.com/aylahq/ayla-backend/internal/shadow/biz"
	shadowdata "github.com/aylahq/ayla-backend/internal/shadow/data"
	shadowservice "github.com/aylahq/ayla-backend/internal/shadow/service"
	workspacebiz "github.com/aylahq/ayla-backend/internal/workspace/biz"
	workspacedata "github.com/aylahq/ayla-backend/internal/workspace/data"
	workspaceservice "github.com/aylahq/ayla-backend/internal/workspace/service"
	"go.uber.org/zap"
)

var configPath = flag.String("config", "configs/config.yaml", "path to config file")

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := conf.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	d, cleanup, err := data.NewData(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := gemini.New(&cfg.Gemini, log)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	tokens, err := tokenizer.New()
	if err != nil {
		return err
	}

	mail, err := mailer.New(&cfg.Mail, log)
	if err != nil {
		return err
	}

	// Repositories.
	fileRepo := shadowdata.NewManagedFileRepo(d.DB)
	cacheRepo := shadowdata.NewContextCacheRepo(d.DB)
	workspaceRepo := workspacedata.NewWorkspaceRepo(d.DB)
	workspaceFileRepo := workspacedata.NewWorkspaceFileRepo(d.DB)
	deadlineRepo := academicdata.NewDeadlineRepo(d.DB)
	reminderRepo := academicdata.NewReminderRepo(d.DB)

	// Use cases.
	uploader := shadowbiz.NewUploadUseCase(fileRepo, engine, d.MinIO, &cfg.Sync, log)
	cacher := shadowbiz.NewCacheUseCase(cacheRepo, fileRepo, engine, tokens, &cfg.Sync, log)
	reaper := shadowbiz.NewReaperUseCase(fileRepo, cacheRepo, engine, log)
	workspaces := workspacebiz.NewWorkspaceUseCase(
		workspaceRepo, workspaceFileRepo, d.MinIO, uploader, cacher, log)
	notifier := academicdata.NewMailNotifier(mail, log)
	academic := academicbiz.NewAcademicUseCase(deadlineRepo, reminderRepo, nil, notifier, log)

	// Reconciliation loop: every periodic job of the engine, each run
	// wrapped in a redis lock shared with the internal job endpoints.
	loop := shadowbiz.NewLoop(d.Redis, cfg.Sync.BackoffMax, log)
	loop.Register(shadowservice.JobCacheCleanup, cfg.Sync.CacheSweepInterval, func(ctx context.Context) error {
		_, err := reaper.SweepCaches(ctx)
		return err
	})
	loop.Register(shadowservice.JobFileCleanup, cfg.Sync.FileSweepInterval, func(ctx context.Context) error {
		_, err := reaper.SweepFiles(ctx)
		return err
	})
	loop.Register(shadowservice.JobDeadlineSync, cfg.Sync.DeadlineSyncInterval, academic.RunDeadlineSync)
	loop.Register(shadowservice.JobReminderDispatch, cfg.Sync.ReminderDispatchInterval, academic.RunReminderDispatch)

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	if err := loop.Start(loopCtx); err != nil {
		return err
	}
	defer loop.Stop()

	httpServer := server.New(cfg, d, &server.Services{
		Files:      shadowservice.NewFileService(uploader, log),
		Jobs:       shadowservice.NewJobService(loop, log),
		Workspaces: workspaceservice.NewWorkspaceService(workspaces, log),
		Academic:   academicservice.NewAcademicService(academic, log),
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
