package biz

import (
	"context"
	"sync"
	"time"

	"github.com/aylahq/ayla-backend/internal/conf"
	"github.com/aylahq/ayla-backend/internal/pkg/gemini"
)

// fakeFileRepo is an in-memory ManagedFileRepo
type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*ManagedFile
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*ManagedFile)}
}

func (r *fakeFileRepo) Create(_ context.Context, f *ManagedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.files[f.ID] = &cp
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id string) (*ManagedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) GetByKey(_ context.Context, key string) (*ManagedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.IdempotencyKey == key {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeFileRepo) ListByOwner(_ context.Context, ownerID string) ([]*ManagedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ManagedFile
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) Update(_ context.Context, f *ManagedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[f.ID]; !ok {
		return ErrNotFound
	}
	cp := *f
	r.files[f.ID] = &cp
	return nil
}

func (r *fakeFileRepo) FindExpired(_ context.Context, before time.Time) ([]*ManagedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ManagedFile
	for _, f := range r.files {
		if f.ExpiresAt != nil && f.ExpiresAt.Before(before) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

func (r *fakeFileRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// fakeCacheRepo is an in-memory ContextCacheRepo
type fakeCacheRepo struct {
	mu     sync.Mutex
	caches map[string]*ContextCache // keyed by workspace ID
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{caches: make(map[string]*ContextCache)}
}

func (r *fakeCacheRepo) GetByWorkspace(_ context.Context, workspaceID string) (*ContextCache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCacheRepo) Replace(_ context.Context, cache *ContextCache) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cache
	r.caches[cache.WorkspaceID] = &cp
	return nil
}

func (r *fakeCacheRepo) FindExpired(_ context.Context, before time.Time) ([]*ContextCache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ContextCache
	for _, c := range r.caches {
		if c.ExpiresAt.Before(before) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCacheRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ws, c := range r.caches {
		if c.ID == id {
			delete(r.caches, ws)
		}
	}
	return nil
}

func (r *fakeCacheRepo) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, workspaceID)
	return nil
}

func (r *fakeCacheRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.caches)
}

// fakeEngine is a scriptable EngineClient with call counters
type fakeEngine struct {
	mu sync.Mutex

	uploadCalls      int
	createJobCalls   int
	waitCalls        int
	getFileCalls     int
	deleteFileCalls  int
	createCacheCalls int
	deleteCacheCalls int

	uploadFn      func(req *gemini.UploadRequest) (*gemini.RemoteFile, error)
	waitFn        func(jobID string) (*gemini.RemoteFile, error)
	getFileFn     func(name string) (*gemini.RemoteFile, error)
	deleteFileFn  func(name string) error
	createCacheFn func(req *gemini.CreateCacheRequest) (*gemini.CachedContent, error)
	deleteCacheFn func(name string) error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{}
}

func activeRemoteFile(name string) *gemini.RemoteFile {
	expires := time.Now().Add(48 * time.Hour)
	return &gemini.RemoteFile{
		Name:       name,
		URI:        "https://files.example/" + name,
		State:      gemini.RemoteFileActive,
		ExpireTime: &expires,
	}
}

func (e *fakeEngine) UploadInline(_ context.Context, req *gemini.UploadRequest) (*gemini.RemoteFile, error) {
	e.mu.Lock()
	e.uploadCalls++
	fn := e.uploadFn
	e.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return activeRemoteFile("files/" + req.DisplayName), nil
}

func (e *fakeEngine) CreateIngestJob(_ context.Context, _ *gemini.UploadRequest) (string, error) {
	e.mu.Lock()
	e.createJobCalls++
	e.mu.Unlock()
	return "job-1", nil
}

func (e *fakeEngine) WaitForIngest(_ context.Context, jobID string, _ *gemini.PollOptions) (*gemini.RemoteFile, error) {
	e.mu.Lock()
	e.waitCalls++
	fn := e.waitFn
	e.mu.Unlock()
	if fn != nil {
		return fn(jobID)
	}
	return activeRemoteFile("files/" + jobID), nil
}

func (e *fakeEngine) GetFile(_ context.Context, name string) (*gemini.RemoteFile, error) {
	e.mu.Lock()
	e.getFileCalls++
	fn := e.getFileFn
	e.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return activeRemoteFile(name), nil
}

func (e *fakeEngine) DeleteFile(_ context.Context, name string) error {
	e.mu.Lock()
	e.deleteFileCalls++
	fn := e.deleteFileFn
	e.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return nil
}

func (e *fakeEngine) CreateCache(_ context.Context, req *gemini.CreateCacheRequest) (*gemini.CachedContent, error) {
	e.mu.Lock()
	e.createCacheCalls++
	fn := e.createCacheFn
	e.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &gemini.CachedContent{
		Name:       "cachedContents/cc-1",
		TokenCount: 9000,
		ExpireTime: time.Now().Add(time.Hour),
	}, nil
}

func (e *fakeEngine) DeleteCache(_ context.Context, name string) error {
	e.mu.Lock()
	e.deleteCacheCalls++
	fn := e.deleteCacheFn
	e.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return nil
}

func (e *fakeEngine) Model() string {
	return "models/test"
}

func (e *fakeEngine) uploadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploadCalls
}

func (e *fakeEngine) createJobCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createJobCalls
}

func (e *fakeEngine) waitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitCalls
}

func (e *fakeEngine) createCacheCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createCacheCalls
}

func (e *fakeEngine) deleteFileCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteFileCalls
}

func (e *fakeEngine) deleteCacheCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteCacheCalls
}

// fakeBlobStore serves fixed content for any key
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (b *fakeBlobStore) put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
}

func (b *fakeBlobStore) GetObject(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (b *fakeBlobStore) RemoveObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.removed = append(b.removed, key)
	return nil
}

// fakeTokenCounter approximates four characters per token
type fakeTokenCounter struct{}

func (fakeTokenCounter) CountTokens(text string) int {
	return len(text) / 4
}

// fakeLocker runs the callback inline; acquired can be forced false
type fakeLocker struct {
	mu      sync.Mutex
	held    bool
	runs    int
	lastTTL time.Duration
}

func (l *fakeLocker) TryWithLock(_ context.Context, _ string, expiration time.Duration, fn func() error) (bool, error) {
	l.mu.Lock()
	l.lastTTL = expiration
	if l.held {
		l.mu.Unlock()
		return false, nil
	}
	l.runs++
	l.mu.Unlock()
	return true, fn()
}

func (l *fakeLocker) ttl() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTTL
}

func testSyncConfig() *conf.SyncConfig {
	return &conf.SyncConfig{
		InlineSizeThreshold: 1 << 20,
		FileRetention:       48 * time.Hour,
		FileSweepInterval:   time.Hour,
		CacheTTL:            time.Hour,
		CacheSweepInterval:  30 * time.Minute,
		CacheExpiryBuffer:   5 * time.Minute,
		MinCacheTokens:      100,
		MaxAttempts:         3,
		RetryBaseDelay:      time.Millisecond,
		BackoffMax:          time.Second,
	}
}
