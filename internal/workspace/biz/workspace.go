package biz

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the workspace or file record does not exist.
	ErrNotFound = errors.New("workspace: not found")

	// ErrPermissionDenied means the caller does not own the workspace.
	ErrPermissionDenied = errors.New("workspace: permission denied")
)

// Workspace is one study context: a named container of notes and files
// that materializes into a single model context.
type Workspace struct {
	ID          string
	OwnerID     string
	Name        string
	Description string

	// Notes is the free-form text body of the workspace. It feeds the
	// context fingerprint, so any edit invalidates the cached context.
	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkspaceFile is the user-facing record of one uploaded document.
// It owns the raw bytes in object storage; the ingestion shadow is keyed
// off ContentHash and lives in the shadow domain with its own lifecycle.
type WorkspaceFile struct {
	ID          string
	WorkspaceID string
	OwnerID     string
	FileName    string
	MimeType    string
	SizeBytes   int64
	ContentHash string
	ObjectKey   string
	CreatedAt   time.Time
}

// WorkspaceRepo is the persistent store for workspaces
type WorkspaceRepo interface {
	Create(ctx context.Context, w *Workspace) error
	GetByID(ctx context.Context, id string) (*Workspace, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Workspace, error)
	Update(ctx context.Context, w *Workspace) error
	Delete(ctx context.Context, id string) error
}

// WorkspaceFileRepo is the persistent store for file records
type WorkspaceFileRepo interface {
	Create(ctx context.Context, f *WorkspaceFile) error
	GetByID(ctx context.Context, id string) (*WorkspaceFile, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*WorkspaceFile, error)
	Delete(ctx context.Context, id string) error
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

// BlobStore writes and removes raw file content in local object storage
type BlobStore interface {
	PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	RemoveObject(ctx context.Context, objectKey string) error
}
