package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aylahq/ayla-backend/internal/auth"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	shadowbiz "github.com/aylahq/ayla-backend/internal/shadow/biz"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ingestGraceTimeout bounds the background ingestion kicked off by an
// upload; large files can poll the async job for minutes.
const ingestGraceTimeout = 10 * time.Minute

// WorkspaceUseCase owns workspaces and their files, and orchestrates the
// shadow engine: uploads feed the ingestion coordinator, chat requests
// materialize the workspace into a fingerprinted context and ask the
// cache manager for a handle.
type WorkspaceUseCase struct {
	workspaces WorkspaceRepo
	files      WorkspaceFileRepo
	blobs      BlobStore
	uploader   *shadowbiz.UploadUseCase
	cacher     *shadowbiz.CacheUseCase
	logger     *logger.Logger
}

func NewWorkspaceUseCase(
	workspaces WorkspaceRepo,
	files WorkspaceFileRepo,
	blobs BlobStore,
	uploader *shadowbiz.UploadUseCase,
	cacher *shadowbiz.CacheUseCase,
	log *logger.Logger,
) *WorkspaceUseCase {
	return &WorkspaceUseCase{
		workspaces: workspaces,
		files:      files,
		blobs:      blobs,
		uploader:   uploader,
		cacher:     cacher,
		logger:     log,
	}
}

// Create adds a workspace for the caller
func (uc *WorkspaceUseCase) Create(ctx context.Context, owner auth.OwnerRef, name, description string) (*Workspace, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("workspace name is required")
	}

	now := time.Now()
	w := &Workspace{
		ID:          uuid.New().String(),
		OwnerID:     owner.ID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.workspaces.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Get returns the workspace if the caller owns it
func (uc *WorkspaceUseCase) Get(ctx context.Context, owner auth.OwnerRef, id string) (*Workspace, error) {
	return uc.getOwned(ctx, owner, id)
}

// List returns the caller's workspaces
func (uc *WorkspaceUseCase) List(ctx context.Context, owner auth.OwnerRef) ([]*Workspace, error) {
	return uc.workspaces.ListByOwner(ctx, owner.ID)
}

// UpdateNotes replaces the workspace notes. The next context request sees
// a changed fingerprint and rebuilds the cache; no explicit invalidation
// is needed.
func (uc *WorkspaceUseCase) UpdateNotes(ctx context.Context, owner auth.OwnerRef, id, notes string) (*Workspace, error) {
	w, err := uc.getOwned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	w.Notes = notes
	w.UpdatedAt = time.Now()
	if err := uc.workspaces.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes the workspace and everything hanging off it: the cached
// context, each file's shadow, remote resource and blob, and the records.
func (uc *WorkspaceUseCase) Delete(ctx context.Context, owner auth.OwnerRef, id string) error {
	w, err := uc.getOwned(ctx, owner, id)
	if err != nil {
		return err
	}

	if err := uc.cacher.Invalidate(ctx, w.ID); err != nil {
		uc.logger.Warn("cache invalidation failed during workspace delete",
			zap.String("workspace_id", w.ID),
			zap.Error(err))
	}

	files, err := uc.files.ListByWorkspace(ctx, w.ID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := uc.uploader.RemoveByContent(ctx, owner, f.ContentHash); err != nil {
			uc.logger.Warn("shadow removal failed during workspace delete",
				zap.String("file_id", f.ID),
				zap.Error(err))
		}
		if err := uc.blobs.RemoveObject(ctx, f.ObjectKey); err != nil {
			uc.logger.Warn("blob removal failed during workspace delete",
				zap.String("object_key", f.ObjectKey),
				zap.Error(err))
		}
	}

	if err := uc.files.DeleteByWorkspace(ctx, w.ID); err != nil {
		return err
	}
	return uc.workspaces.Delete(ctx, w.ID)
}

// FileUpload carries one uploaded document's content and metadata
type FileUpload struct {
	FileName string
	MimeType string
	Data     []byte
}

// AddFile stores the raw bytes, records the file and kicks off ingestion
// in the background. The returned record's shadow starts out pending;
// clients poll the file endpoint for the terminal state.
func (uc *WorkspaceUseCase) AddFile(ctx context.Context, owner auth.OwnerRef, workspaceID string, upload *FileUpload) (*WorkspaceFile, error) {
	w, err := uc.getOwned(ctx, owner, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("empty file upload")
	}

	sum := sha256.Sum256(upload.Data)
	contentHash := hex.EncodeToString(sum[:])

	f := &WorkspaceFile{
		ID:          uuid.New().String(),
		WorkspaceID: w.ID,
		OwnerID:     owner.ID,
		FileName:    upload.FileName,
		MimeType:    upload.MimeType,
		SizeBytes:   int64(len(upload.Data)),
		ContentHash: contentHash,
		ObjectKey:   fmt.Sprintf("workspaces/%s/%s/%s", w.ID, contentHash[:16], upload.FileName),
		CreatedAt:   time.Now(),
	}

	if err := uc.blobs.PutObject(ctx, f.ObjectKey, upload.Data, upload.MimeType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	if err := uc.files.Create(ctx, f); err != nil {
		return nil, err
	}

	go uc.ingestAsync(owner, f)
	return f, nil
}

// RemoveFile deletes the record, its shadow and its blob
func (uc *WorkspaceUseCase) RemoveFile(ctx context.Context, owner auth.OwnerRef, workspaceID, fileID string) error {
	if _, err := uc.getOwned(ctx, owner, workspaceID); err != nil {
		return err
	}

	f, err := uc.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.WorkspaceID != workspaceID || !owner.Owns(f.OwnerID) {
		return ErrPermissionDenied
	}

	if err := uc.uploader.RemoveByContent(ctx, owner, f.ContentHash); err != nil {
		uc.logger.Warn("shadow removal failed during file delete",
			zap.String("file_id", f.ID),
			zap.Error(err))
	}
	if err := uc.blobs.RemoveObject(ctx, f.ObjectKey); err != nil {
		uc.logger.Warn("blob removal failed during file delete",
			zap.String("object_key", f.ObjectKey),
			zap.Error(err))
	}
	return uc.files.Delete(ctx, fileID)
}

// ListFiles returns the workspace's file records
func (uc *WorkspaceUseCase) ListFiles(ctx context.Context, owner auth.OwnerRef, workspaceID string) ([]*WorkspaceFile, error) {
	if _, err := uc.getOwned(ctx, owner, workspaceID); err != nil {
		return nil, err
	}
	return uc.files.ListByWorkspace(ctx, workspaceID)
}

// Materialize assembles the workspace into a fingerprinted context.
// Each file is pushed through the idempotent ingestion path, so expired
// or drifted shadows are re-driven here; files that still fail are left
// out of the context and keep their failure reason for the UI.
func (uc *WorkspaceUseCase) Materialize(ctx context.Context, owner auth.OwnerRef, workspaceID string) (*shadowbiz.WorkspaceContent, error) {
	w, err := uc.getOwned(ctx, owner, workspaceID)
	if err != nil {
		return nil, err
	}

	records, err := uc.files.ListByWorkspace(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	active := make([]*shadowbiz.ManagedFile, 0, len(records))
	activeHashes := make([]string, 0, len(records))
	for _, rec := range records {
		shadow, err := uc.uploader.Ingest(ctx, owner, &shadowbiz.IngestRequest{
			WorkspaceID: w.ID,
			FileName:    rec.FileName,
			MimeType:    rec.MimeType,
			SizeBytes:   rec.SizeBytes,
			ObjectKey:   rec.ObjectKey,
			ContentHash: rec.ContentHash,
		})
		if err != nil {
			if errors.Is(err, shadowbiz.ErrIngestFailed) {
				uc.logger.Warn("file excluded from context",
					zap.String("file_id", rec.ID),
					zap.String("file_name", rec.FileName),
					zap.Error(err))
				continue
			}
			return nil, err
		}
		active = append(active, shadow)
		activeHashes = append(activeHashes, rec.ContentHash)
	}

	return &shadowbiz.WorkspaceContent{
		WorkspaceID: w.ID,
		Name:        w.Name,
		Notes:       w.Notes,
		Files:       active,
		Fingerprint: contextFingerprint(w.Notes, activeHashes),
	}, nil
}

// ChatContext is what a chat request needs to address the workspace's
// context: the cache handle when one is valid, or the raw materials when
// the context cannot be cached.
type ChatContext struct {
	WorkspaceID  string
	Cached       bool
	ResourceName string
	TokenCount   int
	Notes        string
	Files        []*shadowbiz.ManagedFile
}

// BuildChatContext materializes the workspace and resolves its cache.
// Cache trouble never fails the chat: too-small or unbuildable contexts
// degrade to the uncached form.
func (uc *WorkspaceUseCase) BuildChatContext(ctx context.Context, owner auth.OwnerRef, workspaceID string) (*ChatContext, error) {
	content, err := uc.Materialize(ctx, owner, workspaceID)
	if err != nil {
		return nil, err
	}

	cache, err := uc.cacher.GetOrBuild(ctx, content)
	if err != nil {
		if errors.Is(err, shadowbiz.ErrContentTooSmall) || errors.Is(err, shadowbiz.ErrCacheBuildFailed) {
			uc.logger.Info("serving uncached context",
				zap.String("workspace_id", workspaceID),
				zap.Error(err))
			return &ChatContext{
				WorkspaceID: workspaceID,
				Notes:       content.Notes,
				Files:       content.Files,
			}, nil
		}
		return nil, err
	}

	return &ChatContext{
		WorkspaceID:  workspaceID,
		Cached:       true,
		ResourceName: cache.ResourceName,
		TokenCount:   cache.TokenCount,
	}, nil
}

func (uc *WorkspaceUseCase) getOwned(ctx context.Context, owner auth.OwnerRef, id string) (*Workspace, error) {
	w, err := uc.workspaces.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owner.Owns(w.OwnerID) {
		return nil, ErrPermissionDenied
	}
	return w, nil
}

func (uc *WorkspaceUseCase) ingestAsync(owner auth.OwnerRef, f *WorkspaceFile) {
	ctx, cancel := context.WithTimeout(context.Background(), ingestGraceTimeout)
	defer cancel()

	if _, err := uc.uploader.Ingest(ctx, owner, &shadowbiz.IngestRequest{
		WorkspaceID: f.WorkspaceID,
		FileName:    f.FileName,
		MimeType:    f.MimeType,
		SizeBytes:   f.SizeBytes,
		ObjectKey:   f.ObjectKey,
		ContentHash: f.ContentHash,
	}); err != nil {
		uc.logger.Warn("background ingestion failed",
			zap.String("file_id", f.ID),
			zap.String("file_name", f.FileName),
			zap.Error(err))
	}
}

// contextFingerprint hashes everything the cached context is built from:
// the notes text and the content digests of the files that made it in.
func contextFingerprint(notes string, contentHashes []string) string {
	sorted := make([]string, len(contentHashes))
	copy(sorted, contentHashes)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(notes))
	for _, ch := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(ch))
	}
	return hex.EncodeToString(h.Sum(nil))
}
