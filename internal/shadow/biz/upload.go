package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aylahq/ayla-backend/internal/auth"
	"github.com/aylahq/ayla-backend/internal/conf"
	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestRequest describes one document to push to the external service.
// The raw bytes must already sit in local object storage under ObjectKey;
// ContentHash is the hex SHA-256 of those bytes.
type IngestRequest struct {
	WorkspaceID string
	FileName    string
	MimeType    string
	SizeBytes   int64
	ObjectKey   string
	ContentHash string
}

// UploadUseCase owns the ManagedFile lifecycle: idempotent ingestion,
// crash resume, explicit retry and removal. All mutations of a given
// idempotency key are serialized through an in-process keyed lock, so two
// racing requests for the same content produce exactly one remote upload.
type UploadUseCase struct {
	files  ManagedFileRepo
	engine EngineClient
	blobs  BlobStore
	locks  *keyLock
	cfg    *conf.SyncConfig
	logger *logger.Logger
}

func NewUploadUseCase(
	files ManagedFileRepo,
	engine EngineClient,
	blobs BlobStore,
	cfg *conf.SyncConfig,
	log *logger.Logger,
) *UploadUseCase {
	return &UploadUseCase{
		files:  files,
		engine: engine,
		blobs:  blobs,
		locks:  newKeyLock(),
		cfg:    cfg,
		logger: log,
	}
}

// Ingest creates or revives the shadow record for the given content and
// drives it to a terminal state. Calling it again with the same owner and
// content hash returns the existing active record without touching the
// external service. A non-terminal record found here belongs to a run that
// crashed mid-flight; holding the key lock proves no live worker owns it,
// so ingestion resumes from the stored row.
func (uc *UploadUseCase) Ingest(ctx context.Context, owner auth.OwnerRef, req *IngestRequest) (*ManagedFile, error) {
	if req.ContentHash == "" || req.ObjectKey == "" {
		return nil, fmt.Errorf("ingest request missing content hash or object key")
	}

	key := IdempotencyKey(owner.ID, req.ContentHash)

	release, err := uc.locks.Acquire(ctx, "file:"+key)
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := uc.files.GetByKey(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if f != nil {
		if f.State == FileStateActive {
			return f, nil
		}
		uc.logger.Info("resuming non-terminal file record",
			zap.String("file_id", f.ID),
			zap.String("state", f.State.String()))
	} else {
		now := time.Now()
		f = &ManagedFile{
			ID:             uuid.New().String(),
			OwnerID:        owner.ID,
			WorkspaceID:    req.WorkspaceID,
			IdempotencyKey: key,
			FileName:       req.FileName,
			MimeType:       req.MimeType,
			SizeBytes:      req.SizeBytes,
			ObjectKey:      req.ObjectKey,
			State:          FileStatePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := uc.files.Create(ctx, f); err != nil {
			return nil, err
		}
	}

	return uc.drive(ctx, f)
}

// Retry re-drives a failed file. Files in any other state are returned
// unchanged so callers can poll with the same endpoint.
func (uc *UploadUseCase) Retry(ctx context.Context, owner auth.OwnerRef, fileID string) (*ManagedFile, error) {
	f, err := uc.getOwned(ctx, owner, fileID)
	if err != nil {
		return nil, err
	}
	if f.State != FileStateFailed {
		return f, nil
	}

	release, err := uc.locks.Acquire(ctx, "file:"+f.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; a concurrent ingest may have finished already.
	f, err = uc.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.State == FileStateActive {
		return f, nil
	}
	return uc.drive(ctx, f)
}

// Get returns the shadow record for polling
func (uc *UploadUseCase) Get(ctx context.Context, owner auth.OwnerRef, fileID string) (*ManagedFile, error) {
	return uc.getOwned(ctx, owner, fileID)
}

// List returns every shadow record the owner holds
func (uc *UploadUseCase) List(ctx context.Context, owner auth.OwnerRef) ([]*ManagedFile, error) {
	return uc.files.ListByOwner(ctx, owner.ID)
}

// Remove deletes the shadow record, its remote resource and its blob.
// The remote delete is best effort: an already-gone resource is success,
// and any other remote failure still lets the local delete proceed so the
// user-visible record never outlives the user's intent.
func (uc *UploadUseCase) Remove(ctx context.Context, owner auth.OwnerRef, fileID string) error {
	f, err := uc.getOwned(ctx, owner, fileID)
	if err != nil {
		return err
	}
	return uc.remove(ctx, f)
}

// RemoveByContent deletes the shadow record addressed by content hash.
// Used by workspace cascades, which know the file's content but not its
// shadow ID.
func (uc *UploadUseCase) RemoveByContent(ctx context.Context, owner auth.OwnerRef, contentHash string) error {
	f, err := uc.files.GetByKey(ctx, IdempotencyKey(owner.ID, contentHash))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return uc.remove(ctx, f)
}

func (uc *UploadUseCase) remove(ctx context.Context, f *ManagedFile) error {
	release, err := uc.locks.Acquire(ctx, "file:"+f.IdempotencyKey)
	if err != nil {
		return err
	}
	defer release()

	if f.RemoteURI != "" {
		if err := uc.engine.DeleteFile(ctx, f.RemoteURI); err != nil && !gemini.IsNotFound(err) {
			uc.logger.Warn("remote file delete failed, removing local record anyway",
				zap.String("file_id", f.ID),
				zap.String("remote_uri", f.RemoteURI),
				zap.Error(err))
		}
	}
	if f.ObjectKey != "" {
		if err := uc.blobs.RemoveObject(ctx, f.ObjectKey); err != nil {
			uc.logger.Warn("blob delete failed",
				zap.String("object_key", f.ObjectKey),
				zap.Error(err))
		}
	}
	return uc.files.Delete(ctx, f.ID)
}

func (uc *UploadUseCase) getOwned(ctx context.Context, owner auth.OwnerRef, fileID string) (*ManagedFile, error) {
	f, err := uc.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !owner.Owns(f.OwnerID) {
		return nil, ErrPermissionDenied
	}
	return f, nil
}

// drive pushes the record to a terminal state. Caller holds the key lock.
func (uc *UploadUseCase) drive(ctx context.Context, f *ManagedFile) (*ManagedFile, error) {
	f.State = FileStateUploading
	f.RemoteURI = ""
	f.ExpiresAt = nil
	f.LastError = ""
	if err := uc.files.Update(ctx, f); err != nil {
		return nil, err
	}

	data, err := uc.blobs.GetObject(ctx, f.ObjectKey)
	if err != nil {
		return uc.fail(ctx, f, fmt.Errorf("read blob %s: %w", f.ObjectKey, err))
	}

	upReq := &gemini.UploadRequest{
		DisplayName: f.FileName,
		MimeType:    f.MimeType,
		Data:        data,
	}

	var remote *gemini.RemoteFile
	if f.SizeBytes < uc.cfg.InlineSizeThreshold {
		err = retryTransient(ctx, uc.cfg.MaxAttempts, uc.cfg.RetryBaseDelay, func() error {
			r, e := uc.engine.UploadInline(ctx, upReq)
			if e == nil {
				remote = r
			}
			return e
		})
	} else {
		remote, err = uc.driveAsync(ctx, f, upReq)
	}
	if err != nil {
		return uc.fail(ctx, f, err)
	}
	if remote.State != gemini.RemoteFileActive {
		return uc.fail(ctx, f, fmt.Errorf("remote file in state %s", remote.State))
	}

	expires := remote.ExpireTime
	if expires == nil {
		t := time.Now().Add(uc.cfg.FileRetention)
		expires = &t
	}

	f.State = FileStateActive
	f.RemoteURI = remote.Name
	f.ExpiresAt = expires
	f.LastError = ""
	if err := uc.files.Update(ctx, f); err != nil {
		return nil, err
	}

	uc.logger.Info("file active",
		zap.String("file_id", f.ID),
		zap.String("remote_uri", f.RemoteURI),
		zap.Timep("expires_at", f.ExpiresAt))
	return f, nil
}

// driveAsync runs the create-job/poll path for large content
func (uc *UploadUseCase) driveAsync(ctx context.Context, f *ManagedFile, req *gemini.UploadRequest) (*gemini.RemoteFile, error) {
	var jobID string
	err := retryTransient(ctx, uc.cfg.MaxAttempts, uc.cfg.RetryBaseDelay, func() error {
		id, e := uc.engine.CreateIngestJob(ctx, req)
		if e == nil {
			jobID = id
		}
		return e
	})
	if err != nil {
		return nil, err
	}

	f.State = FileStateProcessing
	if err := uc.files.Update(ctx, f); err != nil {
		return nil, err
	}

	// Re-polling a job ID is idempotent, so transient poll failures get the
	// same retry budget as the other external calls. A failed job comes back
	// as a permanent error and stops the retries.
	var remote *gemini.RemoteFile
	err = retryTransient(ctx, uc.cfg.MaxAttempts, uc.cfg.RetryBaseDelay, func() error {
		r, e := uc.engine.WaitForIngest(ctx, jobID, nil)
		if e == nil {
			remote = r
		}
		return e
	})
	if err != nil {
		return nil, err
	}
	return remote, nil
}

// fail records the terminal failure. The row keeps the reason for the UI
// and the retry endpoint; returning ErrIngestFailed lets the transport
// layer distinguish domain failure from infrastructure failure.
func (uc *UploadUseCase) fail(ctx context.Context, f *ManagedFile, cause error) (*ManagedFile, error) {
	f.State = FileStateFailed
	f.RemoteURI = ""
	f.ExpiresAt = nil
	f.LastError = cause.Error()
	if err := uc.files.Update(ctx, f); err != nil {
		uc.logger.Error("failed to persist failure state",
			zap.String("file_id", f.ID),
			zap.Error(err))
	}
	uc.logger.Warn("file ingestion failed",
		zap.String("file_id", f.ID),
		zap.String("file_name", f.FileName),
		zap.Error(cause))
	return f, fmt.Errorf("%w: %v", ErrIngestFailed, cause)
}
