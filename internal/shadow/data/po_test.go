package data

import (
	"testing"
	"time"

	"github.com/aylahq/ayla-backend/internal/shadow/biz"
	"github.com/stretchr/testify/assert"
)

func TestManagedFilePOMapping(t *testing.T) {
	expires := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	f := &biz.ManagedFile{
		ID:             "id-1",
		OwnerID:        "user-1",
		WorkspaceID:    "ws-1",
		IdempotencyKey: "key-1",
		FileName:       "notes.pdf",
		MimeType:       "application/pdf",
		SizeBytes:      1024,
		ObjectKey:      "workspaces/ws-1/abc/notes.pdf",
		RemoteURI:      "files/abc",
		State:          biz.FileStateActive,
		LastError:      "",
		ExpiresAt:      &expires,
		CreatedAt:      time.Now().Truncate(time.Second),
		UpdatedAt:      time.Now().Truncate(time.Second),
	}

	assert.Equal(t, f, managedFileToPO(f).toDomain())
}

func TestManagedFilePOMappingFailedState(t *testing.T) {
	f := &biz.ManagedFile{
		ID:             "id-2",
		OwnerID:        "user-1",
		IdempotencyKey: "key-2",
		FileName:       "broken.docx",
		State:          biz.FileStateFailed,
		LastError:      "unsupported mime type",
	}

	got := managedFileToPO(f).toDomain()
	assert.Equal(t, f, got)
	assert.Nil(t, got.ExpiresAt)
	assert.True(t, got.Consistent())
}

func TestContextCachePOMapping(t *testing.T) {
	c := &biz.ContextCache{
		ID:           "c-1",
		WorkspaceID:  "ws-1",
		ResourceName: "cachedContents/cc-1",
		Fingerprint:  "fp-1",
		TokenCount:   9000,
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		CreatedAt:    time.Now().Truncate(time.Second),
		UpdatedAt:    time.Now().Truncate(time.Second),
	}

	assert.Equal(t, c, contextCacheToPO(c).toDomain())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "managed_files", ManagedFilePO{}.TableName())
	assert.Equal(t, "context_caches", ContextCachePO{}.TableName())
}
