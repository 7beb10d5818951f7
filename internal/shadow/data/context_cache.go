package data

import (
	"context"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"github.com/aylahq/ayla-backend/internal/shadow/biz"
	"gorm.io/gorm"
)

// ContextCachePO is the persistent object for cache shadows. The unique
// index on workspace_id enforces at most one cache per workspace.
type ContextCachePO struct {
	ID           string    `gorm:"column:id;primaryKey;type:uuid"`
	WorkspaceID  string    `gorm:"column:workspace_id;type:uuid;not null;uniqueIndex:uk_context_caches_workspace"`
	ResourceName string    `gorm:"column:resource_name;type:varchar(512);not null"`
	Fingerprint  string    `gorm:"column:fingerprint;type:char(64);not null"`
	TokenCount   int       `gorm:"column:token_count;not null;default:0"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null;index:idx_context_caches_expires"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (ContextCachePO) TableName() string {
	return "context_caches"
}

func (po *ContextCachePO) toDomain() *biz.ContextCache {
	return &biz.ContextCache{
		ID:           po.ID,
		WorkspaceID:  po.WorkspaceID,
		ResourceName: po.ResourceName,
		Fingerprint:  po.Fingerprint,
		TokenCount:   po.TokenCount,
		ExpiresAt:    po.ExpiresAt,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
}

func contextCacheToPO(c *biz.ContextCache) *ContextCachePO {
	return &ContextCachePO{
		ID:           c.ID,
		WorkspaceID:  c.WorkspaceID,
		ResourceName: c.ResourceName,
		Fingerprint:  c.Fingerprint,
		TokenCount:   c.TokenCount,
		ExpiresAt:    c.ExpiresAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type contextCacheRepo struct {
	db *database.DB
}

// NewContextCacheRepo creates the gorm-backed cache shadow store
func NewContextCacheRepo(db *database.DB) biz.ContextCacheRepo {
	return &contextCacheRepo{db: db}
}

func (r *contextCacheRepo) GetByWorkspace(ctx context.Context, workspaceID string) (*biz.ContextCache, error) {
	var po ContextCachePO
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

// Replace swaps the workspace's cache row in one transaction, so readers
// never observe two rows or a half-written one.
func (r *contextCacheRepo) Replace(ctx context.Context, cache *biz.ContextCache) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", cache.WorkspaceID).
			Delete(&ContextCachePO{}).Error; err != nil {
			return err
		}
		return tx.Create(contextCacheToPO(cache)).Error
	})
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *contextCacheRepo) FindExpired(ctx context.Context, before time.Time) ([]*biz.ContextCache, error) {
	var pos []ContextCachePO
	if err := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	caches := make([]*biz.ContextCache, 0, len(pos))
	for i := range pos {
		caches = append(caches, pos[i].toDomain())
	}
	return caches, nil
}

func (r *contextCacheRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ContextCachePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *contextCacheRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).
		Delete(&ContextCachePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}
