package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"github.com/aylahq/ayla-backend/internal/workspace/biz"
	"gorm.io/gorm"
)

// WorkspacePO is the persistent object for workspaces
type WorkspacePO struct {
	ID          string    `gorm:"column:id;primaryKey;type:uuid"`
	OwnerID     string    `gorm:"column:owner_id;type:varchar(128);not null;index:idx_workspaces_owner"`
	Name        string    `gorm:"column:name;type:varchar(256);not null"`
	Description string    `gorm:"column:description;type:text"`
	Notes       string    `gorm:"column:notes;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (WorkspacePO) TableName() string {
	return "workspaces"
}

func (po *WorkspacePO) toDomain() *biz.Workspace {
	return &biz.Workspace{
		ID:          po.ID,
		OwnerID:     po.OwnerID,
		Name:        po.Name,
		Description: po.Description,
		Notes:       po.Notes,
		CreatedAt:   po.CreatedAt,
		UpdatedAt:   po.UpdatedAt,
	}
}

func workspaceToPO(w *biz.Workspace) *WorkspacePO {
	return &WorkspacePO{
		ID:          w.ID,
		OwnerID:     w.OwnerID,
		Name:        w.Name,
		Description: w.Description,
		Notes:       w.Notes,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

type workspaceRepo struct {
	db *database.DB
}

// NewWorkspaceRepo creates the gorm-backed workspace store
func NewWorkspaceRepo(db *database.DB) biz.WorkspaceRepo {
	return &workspaceRepo{db: db}
}

func (r *workspaceRepo) Create(ctx context.Context, w *biz.Workspace) error {
	if err := r.db.WithContext(ctx).Create(workspaceToPO(w)).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *workspaceRepo) GetByID(ctx context.Context, id string) (*biz.Workspace, error) {
	var po WorkspacePO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

func (r *workspaceRepo) ListByOwner(ctx context.Context, ownerID string) ([]*biz.Workspace, error) {
	var pos []WorkspacePO
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	workspaces := make([]*biz.Workspace, 0, len(pos))
	for i := range pos {
		workspaces = append(workspaces, pos[i].toDomain())
	}
	return workspaces, nil
}

func (r *workspaceRepo) Update(ctx context.Context, w *biz.Workspace) error {
	result := r.db.WithContext(ctx).
		Model(&WorkspacePO{}).
		Where("id = ?", w.ID).
		Updates(map[string]interface{}{
			"name":        w.Name,
			"description": w.Description,
			"notes":       w.Notes,
			"updated_at":  w.UpdatedAt,
		})
	if result.Error != nil {
		return mapStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return biz.ErrNotFound
	}
	return nil
}

func (r *workspaceRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&WorkspacePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func mapStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return biz.ErrNotFound
	}
	return fmt.Errorf("workspace store: %w", err)
}
