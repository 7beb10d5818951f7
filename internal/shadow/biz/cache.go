package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aylahq/ayla-backend/internal/conf"
	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkspaceContent is the assembled context of one workspace: the notes
// text plus the active file shadows, with the caller-computed fingerprint
// of all of it.
type WorkspaceContent struct {
	WorkspaceID string
	Name        string
	Notes       string
	Files       []*ManagedFile
	Fingerprint string
}

// CacheUseCase owns the ContextCache lifecycle. One cache per workspace;
// a fingerprint mismatch or imminent expiry triggers a rebuild under the
// workspace's key lock, so concurrent chat requests share a single build.
type CacheUseCase struct {
	caches ContextCacheRepo
	files  ManagedFileRepo
	engine EngineClient
	tokens TokenCounter
	locks  *keyLock
	cfg    *conf.SyncConfig
	logger *logger.Logger
}

func NewCacheUseCase(
	caches ContextCacheRepo,
	files ManagedFileRepo,
	engine EngineClient,
	tokens TokenCounter,
	cfg *conf.SyncConfig,
	log *logger.Logger,
) *CacheUseCase {
	return &CacheUseCase{
		caches: caches,
		files:  files,
		engine: engine,
		tokens: tokens,
		locks:  newKeyLock(),
		cfg:    cfg,
		logger: log,
	}
}

// GetOrBuild returns a valid cache for the workspace, rebuilding if the
// stored one is missing, stale or about to expire. On build failure the
// previous row is left untouched and ErrCacheBuildFailed is returned;
// ErrContentTooSmall tells the caller to proceed uncached.
func (uc *CacheUseCase) GetOrBuild(ctx context.Context, content *WorkspaceContent) (*ContextCache, error) {
	release, err := uc.locks.Acquire(ctx, "cache:"+content.WorkspaceID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := uc.caches.GetByWorkspace(ctx, content.WorkspaceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil &&
		existing.Fingerprint == content.Fingerprint &&
		!existing.ExpiredWithin(time.Now(), uc.cfg.CacheExpiryBuffer) {
		return existing, nil
	}

	built, err := uc.build(ctx, content)
	if err != nil {
		if errors.Is(err, ErrContentTooSmall) {
			return nil, err
		}
		uc.logger.Warn("cache build failed",
			zap.String("workspace_id", content.WorkspaceID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCacheBuildFailed, err)
	}
	return built, nil
}

// Invalidate drops the workspace's cache locally and remotely. Safe to
// call when no cache exists.
func (uc *CacheUseCase) Invalidate(ctx context.Context, workspaceID string) error {
	release, err := uc.locks.Acquire(ctx, "cache:"+workspaceID)
	if err != nil {
		return err
	}
	defer release()

	existing, err := uc.caches.GetByWorkspace(ctx, workspaceID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := uc.engine.DeleteCache(ctx, existing.ResourceName); err != nil && !gemini.IsNotFound(err) {
		uc.logger.Warn("remote cache delete failed, removing local record anyway",
			zap.String("workspace_id", workspaceID),
			zap.String("resource_name", existing.ResourceName),
			zap.Error(err))
	}
	return uc.caches.DeleteByWorkspace(ctx, workspaceID)
}

func (uc *CacheUseCase) build(ctx context.Context, content *WorkspaceContent) (*ContextCache, error) {
	refs, err := uc.verifyFiles(ctx, content.Files)
	if err != nil {
		return nil, err
	}

	if content.Notes == "" && len(refs) == 0 {
		return nil, fmt.Errorf("%w: workspace has no content", ErrContentTooSmall)
	}

	// A notes-only context below the service minimum is rejected remotely
	// anyway; the local estimate saves the round trip.
	if len(refs) == 0 && uc.tokens.CountTokens(content.Notes) < uc.cfg.MinCacheTokens {
		return nil, fmt.Errorf("%w: estimated tokens below minimum %d",
			ErrContentTooSmall, uc.cfg.MinCacheTokens)
	}

	req := &gemini.CreateCacheRequest{
		Model:             uc.engine.Model(),
		DisplayName:       "workspace-" + content.WorkspaceID,
		SystemInstruction: systemInstruction(content.Name),
		Text:              content.Notes,
		Files:             refs,
		TTLSeconds:        int64(uc.cfg.CacheTTL.Seconds()),
	}

	var cached *gemini.CachedContent
	err = retryTransient(ctx, uc.cfg.MaxAttempts, uc.cfg.RetryBaseDelay, func() error {
		c, e := uc.engine.CreateCache(ctx, req)
		if e == nil {
			cached = c
		}
		return e
	})
	if err != nil {
		if gemini.IsContentTooSmall(err) {
			return nil, fmt.Errorf("%w: %v", ErrContentTooSmall, err)
		}
		return nil, err
	}

	now := time.Now()
	row := &ContextCache{
		ID:           uuid.New().String(),
		WorkspaceID:  content.WorkspaceID,
		ResourceName: cached.Name,
		Fingerprint:  content.Fingerprint,
		TokenCount:   cached.TokenCount,
		ExpiresAt:    cached.ExpireTime,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.caches.Replace(ctx, row); err != nil {
		return nil, err
	}

	uc.logger.Info("cache built",
		zap.String("workspace_id", content.WorkspaceID),
		zap.String("resource_name", row.ResourceName),
		zap.Int("token_count", row.TokenCount),
		zap.Time("expires_at", row.ExpiresAt))
	return row, nil
}

// verifyFiles confirms each active file still exists remotely before
// baking it into a cache. A missing or dead remote file is state drift:
// the shadow is marked failed so the next ingest re-drives it, and the
// build continues without it.
func (uc *CacheUseCase) verifyFiles(ctx context.Context, files []*ManagedFile) ([]gemini.FileRef, error) {
	refs := make([]gemini.FileRef, 0, len(files))
	for _, f := range files {
		if f.State != FileStateActive {
			continue
		}

		remote, err := uc.engine.GetFile(ctx, f.RemoteURI)
		switch {
		case gemini.IsNotFound(err):
			uc.markDrifted(ctx, f, "remote file not found")
			continue
		case err != nil:
			return nil, fmt.Errorf("verify file %s: %w", f.ID, err)
		case remote.State != gemini.RemoteFileActive:
			uc.markDrifted(ctx, f, fmt.Sprintf("remote file in state %s", remote.State))
			continue
		}

		refs = append(refs, gemini.FileRef{URI: f.RemoteURI, MimeType: f.MimeType})
	}
	return refs, nil
}

func (uc *CacheUseCase) markDrifted(ctx context.Context, f *ManagedFile, reason string) {
	uc.logger.Warn("state drift detected",
		zap.String("file_id", f.ID),
		zap.String("remote_uri", f.RemoteURI),
		zap.String("reason", reason))

	f.State = FileStateFailed
	f.RemoteURI = ""
	f.ExpiresAt = nil
	f.LastError = reason
	if err := uc.files.Update(ctx, f); err != nil {
		uc.logger.Error("failed to mark drifted file",
			zap.String("file_id", f.ID),
			zap.Error(err))
	}
}

func systemInstruction(workspaceName string) string {
	return fmt.Sprintf(
		"You are a study assistant for the workspace %q. "+
			"Answer using the attached notes and documents; say so when they do not cover the question.",
		workspaceName)
}
