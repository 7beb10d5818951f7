package biz

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFile(t *testing.T, repo *fakeFileRepo, id string, expiresIn time.Duration) {
	t.Helper()
	expires := time.Now().Add(expiresIn)
	require.NoError(t, repo.Create(context.Background(), &ManagedFile{
		ID:             id,
		OwnerID:        "u1",
		IdempotencyKey: "key-" + id,
		State:          FileStateActive,
		RemoteURI:      "files/" + id,
		ExpiresAt:      &expires,
	}))
}

func TestSweepFilesRemovesOnlyExpired(t *testing.T) {
	files := newFakeFileRepo()
	caches := newFakeCacheRepo()
	engine := newFakeEngine()
	uc := NewReaperUseCase(files, caches, engine, logger.Nop())

	seedFile(t, files, "expired-1", -time.Hour)
	seedFile(t, files, "expired-2", -time.Minute)
	seedFile(t, files, "live", time.Hour)

	swept, err := uc.SweepFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, swept)
	assert.Equal(t, 2, engine.deleteFileCount())

	_, err = files.GetByID(context.Background(), "expired-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = files.GetByID(context.Background(), "live")
	assert.NoError(t, err)
}

func TestSweepFilesNotFoundRemotelyIsSuccess(t *testing.T) {
	files := newFakeFileRepo()
	caches := newFakeCacheRepo()
	engine := newFakeEngine()
	engine.deleteFileFn = func(string) error {
		return &gemini.APIError{StatusCode: http.StatusNotFound, Message: "gone"}
	}
	uc := NewReaperUseCase(files, caches, engine, logger.Nop())

	seedFile(t, files, "expired", -time.Hour)

	swept, err := uc.SweepFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 0, files.count())
}

func TestSweepFilesRemoteFailureStillDeletesLocal(t *testing.T) {
	files := newFakeFileRepo()
	caches := newFakeCacheRepo()
	engine := newFakeEngine()
	engine.deleteFileFn = func(string) error {
		return &gemini.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	uc := NewReaperUseCase(files, caches, engine, logger.Nop())

	seedFile(t, files, "expired", -time.Hour)

	swept, err := uc.SweepFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 0, files.count(), "remote trouble must not strand the local row")
}

func TestSweepCachesRemovesExpired(t *testing.T) {
	files := newFakeFileRepo()
	caches := newFakeCacheRepo()
	engine := newFakeEngine()
	uc := NewReaperUseCase(files, caches, engine, logger.Nop())

	require.NoError(t, caches.Replace(context.Background(), &ContextCache{
		ID: "c-old", WorkspaceID: "ws-1", ResourceName: "cachedContents/old",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, caches.Replace(context.Background(), &ContextCache{
		ID: "c-live", WorkspaceID: "ws-2", ResourceName: "cachedContents/live",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	swept, err := uc.SweepCaches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 1, engine.deleteCacheCount())
	assert.Equal(t, 1, caches.count())
}

func TestSweepIsIdempotent(t *testing.T) {
	files := newFakeFileRepo()
	caches := newFakeCacheRepo()
	engine := newFakeEngine()
	uc := NewReaperUseCase(files, caches, engine, logger.Nop())

	seedFile(t, files, "expired", -time.Hour)

	_, err := uc.SweepFiles(context.Background())
	require.NoError(t, err)
	swept, err := uc.SweepFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}
