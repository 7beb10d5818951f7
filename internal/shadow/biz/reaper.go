package biz

import (
	"context"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// ReaperUseCase removes shadow records whose TTL has elapsed. Remote
// deletes are best effort: a resource the service already dropped counts
// as deleted, and any other remote failure never blocks the local delete.
// Everything here is idempotent, so overlapping sweeps are harmless.
type ReaperUseCase struct {
	files  ManagedFileRepo
	caches ContextCacheRepo
	engine EngineClient
	logger *logger.Logger
}

func NewReaperUseCase(
	files ManagedFileRepo,
	caches ContextCacheRepo,
	engine EngineClient,
	log *logger.Logger,
) *ReaperUseCase {
	return &ReaperUseCase{
		files:  files,
		caches: caches,
		engine: engine,
		logger: log,
	}
}

// SweepFiles deletes every file shadow past its expiry. The owning user
// record keeps its content hash, so a later request simply re-ingests.
func (uc *ReaperUseCase) SweepFiles(ctx context.Context) (int, error) {
	expired, err := uc.files.FindExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, f := range expired {
		if f.RemoteURI != "" {
			if err := uc.engine.DeleteFile(ctx, f.RemoteURI); err != nil && !gemini.IsNotFound(err) {
				uc.logger.Warn("remote file delete failed during sweep",
					zap.String("file_id", f.ID),
					zap.String("remote_uri", f.RemoteURI),
					zap.Error(err))
			}
		}
		if err := uc.files.Delete(ctx, f.ID); err != nil {
			uc.logger.Error("local file delete failed during sweep",
				zap.String("file_id", f.ID),
				zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		uc.logger.Info("file sweep complete", zap.Int("swept", swept))
	}
	return swept, nil
}

// SweepCaches deletes every cache shadow past its expiry
func (uc *ReaperUseCase) SweepCaches(ctx context.Context) (int, error) {
	expired, err := uc.caches.FindExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, c := range expired {
		if err := uc.engine.DeleteCache(ctx, c.ResourceName); err != nil && !gemini.IsNotFound(err) {
			uc.logger.Warn("remote cache delete failed during sweep",
				zap.String("cache_id", c.ID),
				zap.String("resource_name", c.ResourceName),
				zap.Error(err))
		}
		if err := uc.caches.Delete(ctx, c.ID); err != nil {
			uc.logger.Error("local cache delete failed during sweep",
				zap.String("cache_id", c.ID),
				zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		uc.logger.Info("cache sweep complete", zap.Int("swept", swept))
	}
	return swept, nil
}
