package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
)

// FileState is the lifecycle state of a ManagedFile
type FileState string

const (
	FileStatePending    FileState = "pending"
	FileStateUploading  FileState = "uploading"
	FileStateProcessing FileState = "processing"
	FileStateActive     FileState = "active"
	FileStateFailed     FileState = "failed"
)

// Valid reports whether s is a known state
func (s FileState) Valid() bool {
	switch s {
	case FileStatePending, FileStateUploading, FileStateProcessing, FileStateActive, FileStateFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends an ingestion attempt
func (s FileState) Terminal() bool {
	return s == FileStateActive || s == FileStateFailed
}

func (s FileState) String() string {
	return string(s)
}

// ManagedFile is the local shadow of one document handed to the external
// ingestion service. The row is authoritative for what the platform believes
// about the remote resource; reconciliation brings it back in line when the
// service disagrees.
type ManagedFile struct {
	ID          string
	OwnerID     string
	WorkspaceID string

	// IdempotencyKey collapses duplicate ingestion requests: a stable hash
	// of the owner and the content digest.
	IdempotencyKey string

	FileName  string
	MimeType  string
	SizeBytes int64

	// ObjectKey locates the raw bytes in local object storage.
	ObjectKey string

	// RemoteURI and ExpiresAt are set iff State == FileStateActive.
	RemoteURI string
	ExpiresAt *time.Time

	State     FileState
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Consistent verifies the active-state invariant: remote handle and expiry
// are present exactly when the file is active.
func (f *ManagedFile) Consistent() bool {
	if f.State == FileStateActive {
		return f.RemoteURI != "" && f.ExpiresAt != nil
	}
	return f.RemoteURI == "" && f.ExpiresAt == nil
}

// ContextCache is the local shadow of one workspace's server-side context
// cache. At most one row exists per workspace; the database enforces it.
type ContextCache struct {
	ID          string
	WorkspaceID string

	// ResourceName is the external handle of the cached content.
	ResourceName string

	// Fingerprint is the content hash the cache was built from. A mismatch
	// on lookup is the sole invalidation mechanism.
	Fingerprint string

	TokenCount int
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExpiredWithin reports whether the cache expires before now+buffer.
// The buffer keeps a request from riding a cache that dies mid-conversation.
func (c *ContextCache) ExpiredWithin(now time.Time, buffer time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(buffer))
}

// IdempotencyKey derives the stable ingestion key for an owner and a
// content digest.
func IdempotencyKey(ownerID, contentHash string) string {
	h := sha256.Sum256([]byte(ownerID + "\x00" + contentHash))
	return hex.EncodeToString(h[:])
}

// ManagedFileRepo is the persistent store for file shadows
type ManagedFileRepo interface {
	Create(ctx context.Context, f *ManagedFile) error
	GetByID(ctx context.Context, id string) (*ManagedFile, error)
	GetByKey(ctx context.Context, idempotencyKey string) (*ManagedFile, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*ManagedFile, error)
	Update(ctx context.Context, f *ManagedFile) error
	FindExpired(ctx context.Context, before time.Time) ([]*ManagedFile, error)
	Delete(ctx context.Context, id string) error
}

// ContextCacheRepo is the persistent store for cache shadows.
// Replace must atomically remove any previous row for the workspace and
// insert the new one, so the uniqueness invariant holds across rebuilds.
type ContextCacheRepo interface {
	GetByWorkspace(ctx context.Context, workspaceID string) (*ContextCache, error)
	Replace(ctx context.Context, cache *ContextCache) error
	FindExpired(ctx context.Context, before time.Time) ([]*ContextCache, error)
	Delete(ctx context.Context, id string) error
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

// EngineClient is the external ingestion/caching service boundary
type EngineClient interface {
	UploadInline(ctx context.Context, req *gemini.UploadRequest) (*gemini.RemoteFile, error)
	CreateIngestJob(ctx context.Context, req *gemini.UploadRequest) (string, error)
	WaitForIngest(ctx context.Context, jobID string, opts *gemini.PollOptions) (*gemini.RemoteFile, error)
	GetFile(ctx context.Context, name string) (*gemini.RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
	CreateCache(ctx context.Context, req *gemini.CreateCacheRequest) (*gemini.CachedContent, error)
	DeleteCache(ctx context.Context, name string) error
	Model() string
}

// BlobStore reads and removes raw file content from local object storage
type BlobStore interface {
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	RemoveObject(ctx context.Context, objectKey string) error
}

// TokenCounter estimates token counts for cache sizing decisions
type TokenCounter interface {
	CountTokens(text string) int
}

// Locker serializes scheduled jobs across instances
type Locker interface {
	TryWithLock(ctx context.Context, key string, expiration time.Duration, fn func() error) (bool, error)
}
