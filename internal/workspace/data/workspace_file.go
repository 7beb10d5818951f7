package data

import (
	"context"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"github.com/aylahq/ayla-backend/internal/workspace/biz"
)

// WorkspaceFilePO is the persistent object for file records
type WorkspaceFilePO struct {
	ID          string    `gorm:"column:id;primaryKey;type:uuid"`
	WorkspaceID string    `gorm:"column:workspace_id;type:uuid;not null;index:idx_workspace_files_workspace"`
	OwnerID     string    `gorm:"column:owner_id;type:varchar(128);not null"`
	FileName    string    `gorm:"column:file_name;type:varchar(512);not null"`
	MimeType    string    `gorm:"column:mime_type;type:varchar(128)"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null;default:0"`
	ContentHash string    `gorm:"column:content_hash;type:char(64);not null"`
	ObjectKey   string    `gorm:"column:object_key;type:varchar(1024);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (WorkspaceFilePO) TableName() string {
	return "workspace_files"
}

func (po *WorkspaceFilePO) toDomain() *biz.WorkspaceFile {
	return &biz.WorkspaceFile{
		ID:          po.ID,
		WorkspaceID: po.WorkspaceID,
		OwnerID:     po.OwnerID,
		FileName:    po.FileName,
		MimeType:    po.MimeType,
		SizeBytes:   po.SizeBytes,
		ContentHash: po.ContentHash,
		ObjectKey:   po.ObjectKey,
		CreatedAt:   po.CreatedAt,
	}
}

func workspaceFileToPO(f *biz.WorkspaceFile) *WorkspaceFilePO {
	return &WorkspaceFilePO{
		ID:          f.ID,
		WorkspaceID: f.WorkspaceID,
		OwnerID:     f.OwnerID,
		FileName:    f.FileName,
		MimeType:    f.MimeType,
		SizeBytes:   f.SizeBytes,
		ContentHash: f.ContentHash,
		ObjectKey:   f.ObjectKey,
		CreatedAt:   f.CreatedAt,
	}
}

type workspaceFileRepo struct {
	db *database.DB
}

// NewWorkspaceFileRepo creates the gorm-backed file record store
func NewWorkspaceFileRepo(db *database.DB) biz.WorkspaceFileRepo {
	return &workspaceFileRepo{db: db}
}

func (r *workspaceFileRepo) Create(ctx context.Context, f *biz.WorkspaceFile) error {
	if err := r.db.WithContext(ctx).Create(workspaceFileToPO(f)).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *workspaceFileRepo) GetByID(ctx context.Context, id string) (*biz.WorkspaceFile, error) {
	var po WorkspaceFilePO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

func (r *workspaceFileRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*biz.WorkspaceFile, error) {
	var pos []WorkspaceFilePO
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	files := make([]*biz.WorkspaceFile, 0, len(pos))
	for i := range pos {
		files = append(files, pos[i].toDomain())
	}
	return files, nil
}

func (r *workspaceFileRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&WorkspaceFilePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *workspaceFileRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	if err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).
		Delete(&WorkspaceFilePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}
