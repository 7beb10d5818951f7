package biz

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacher(caches *fakeCacheRepo, files *fakeFileRepo, engine *fakeEngine) *CacheUseCase {
	return NewCacheUseCase(caches, files, engine, fakeTokenCounter{}, testSyncConfig(), logger.Nop())
}

func bigNotesContent(ws, fingerprint string) *WorkspaceContent {
	// 1000 chars, well over the 100-token test minimum.
	return &WorkspaceContent{
		WorkspaceID: ws,
		Name:        "Linear Algebra",
		Notes:       strings.Repeat("eigenvalue ", 100),
		Fingerprint: fingerprint,
	}
}

func TestGetOrBuildCreatesAndReuses(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	uc := newTestCacher(caches, files, engine)
	content := bigNotesContent("ws-1", "fp-1")

	first, err := uc.GetOrBuild(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, "cachedContents/cc-1", first.ResourceName)
	assert.Equal(t, "fp-1", first.Fingerprint)

	second, err := uc.GetOrBuild(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, engine.createCacheCount(), "matching fingerprint must not rebuild")
}

func TestGetOrBuildRebuildsOnFingerprintChange(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	uc := newTestCacher(caches, files, engine)

	_, err := uc.GetOrBuild(context.Background(), bigNotesContent("ws-1", "fp-1"))
	require.NoError(t, err)
	_, err = uc.GetOrBuild(context.Background(), bigNotesContent("ws-1", "fp-2"))
	require.NoError(t, err)

	assert.Equal(t, 2, engine.createCacheCount())
	assert.Equal(t, 1, caches.count(), "rebuild must replace, not accumulate")
}

func TestGetOrBuildRebuildsInsideExpiryBuffer(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	uc := newTestCacher(caches, files, engine)

	// Valid fingerprint but expiring within the 5 minute buffer.
	require.NoError(t, caches.Replace(context.Background(), &ContextCache{
		ID:           "old",
		WorkspaceID:  "ws-1",
		ResourceName: "cachedContents/old",
		Fingerprint:  "fp-1",
		ExpiresAt:    time.Now().Add(time.Minute),
	}))

	rebuilt, err := uc.GetOrBuild(context.Background(), bigNotesContent("ws-1", "fp-1"))
	require.NoError(t, err)
	assert.NotEqual(t, "old", rebuilt.ID)
	assert.Equal(t, 1, engine.createCacheCount())
}

func TestGetOrBuildFailureLeavesPreviousRow(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	engine.createCacheFn = func(*gemini.CreateCacheRequest) (*gemini.CachedContent, error) {
		return nil, &gemini.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	uc := newTestCacher(caches, files, engine)

	stale := &ContextCache{
		ID:           "stale",
		WorkspaceID:  "ws-1",
		ResourceName: "cachedContents/stale",
		Fingerprint:  "fp-old",
		ExpiresAt:    time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, caches.Replace(context.Background(), stale))

	_, err := uc.GetOrBuild(context.Background(), bigNotesContent("ws-1", "fp-new"))
	assert.ErrorIs(t, err, ErrCacheBuildFailed)

	kept, err := caches.GetByWorkspace(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "stale", kept.ID, "failed build must not destroy the previous row")
}

func TestGetOrBuildTooSmallWithoutServiceCall(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	uc := newTestCacher(caches, files, engine)

	_, err := uc.GetOrBuild(context.Background(), &WorkspaceContent{
		WorkspaceID: "ws-1",
		Notes:       "short note",
		Fingerprint: "fp-1",
	})
	assert.ErrorIs(t, err, ErrContentTooSmall)
	assert.Equal(t, 0, engine.createCacheCount())
}

func TestGetOrBuildTooSmallFromService(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	engine.createCacheFn = func(*gemini.CreateCacheRequest) (*gemini.CachedContent, error) {
		return nil, &gemini.APIError{
			StatusCode: http.StatusBadRequest,
			Message:    "cached content is too small: min_total_token_count is 4096",
		}
	}
	uc := newTestCacher(caches, files, engine)

	_, err := uc.GetOrBuild(context.Background(), bigNotesContent("ws-1", "fp-1"))
	assert.ErrorIs(t, err, ErrContentTooSmall)
}

func TestGetOrBuildDriftMarksFileFailed(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	engine.getFileFn = func(name string) (*gemini.RemoteFile, error) {
		if name == "files/gone" {
			return nil, &gemini.APIError{StatusCode: http.StatusNotFound, Message: "not found"}
		}
		return activeRemoteFile(name), nil
	}
	uc := newTestCacher(caches, files, engine)

	expires := time.Now().Add(time.Hour)
	gone := &ManagedFile{
		ID: "f-gone", OwnerID: "u1", IdempotencyKey: "k1", MimeType: "application/pdf",
		State: FileStateActive, RemoteURI: "files/gone", ExpiresAt: &expires,
	}
	alive := &ManagedFile{
		ID: "f-alive", OwnerID: "u1", IdempotencyKey: "k2", MimeType: "application/pdf",
		State: FileStateActive, RemoteURI: "files/alive", ExpiresAt: &expires,
	}
	require.NoError(t, files.Create(context.Background(), gone))
	require.NoError(t, files.Create(context.Background(), alive))

	content := bigNotesContent("ws-1", "fp-1")
	content.Files = []*ManagedFile{gone, alive}

	built, err := uc.GetOrBuild(context.Background(), content)
	require.NoError(t, err)
	assert.NotNil(t, built)

	marked, err := files.GetByID(context.Background(), "f-gone")
	require.NoError(t, err)
	assert.Equal(t, FileStateFailed, marked.State)
	assert.True(t, marked.Consistent())

	untouched, err := files.GetByID(context.Background(), "f-alive")
	require.NoError(t, err)
	assert.Equal(t, FileStateActive, untouched.State)
}

func TestGetOrBuildConcurrentSingleBuild(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	uc := newTestCacher(caches, files, engine)
	content := bigNotesContent("ws-1", "fp-1")

	const workers = 8
	results := make([]*ContextCache, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := uc.GetOrBuild(context.Background(), content)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, engine.createCacheCount(), "concurrent requests must share one build")
	for _, c := range results {
		assert.Equal(t, results[0].ID, c.ID)
	}
}

func TestInvalidateRemovesLocalAndRemote(t *testing.T) {
	caches := newFakeCacheRepo()
	files := newFakeFileRepo()
	engine := newFakeEngine()
	uc := newTestCacher(caches, files, engine)

	_, err := uc.GetOrBuild(context.Background(), bigNotesContent("ws-1", "fp-1"))
	require.NoError(t, err)

	require.NoError(t, uc.Invalidate(context.Background(), "ws-1"))
	assert.Equal(t, 0, caches.count())
	assert.Equal(t, 1, engine.deleteCacheCount())

	// Invalidating again is a no-op.
	require.NoError(t, uc.Invalidate(context.Background(), "ws-1"))
	assert.Equal(t, 1, engine.deleteCacheCount())
}
