package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"github.com/aylahq/ayla-backend/internal/shadow/biz"
	"gorm.io/gorm"
)

// ManagedFilePO is the persistent object for file shadows
type ManagedFilePO struct {
	ID             string     `gorm:"column:id;primaryKey;type:uuid"`
	OwnerID        string     `gorm:"column:owner_id;type:varchar(128);not null;index:idx_managed_files_owner"`
	WorkspaceID    string     `gorm:"column:workspace_id;type:uuid;index:idx_managed_files_workspace"`
	IdempotencyKey string     `gorm:"column:idempotency_key;type:char(64);not null;uniqueIndex:uk_managed_files_idem_key"`
	FileName       string     `gorm:"column:file_name;type:varchar(512);not null"`
	MimeType       string     `gorm:"column:mime_type;type:varchar(128)"`
	SizeBytes      int64      `gorm:"column:size_bytes;not null;default:0"`
	ObjectKey      string     `gorm:"column:object_key;type:varchar(1024);not null"`
	RemoteURI      string     `gorm:"column:remote_uri;type:varchar(1024)"`
	State          string     `gorm:"column:state;type:varchar(16);not null;index:idx_managed_files_state"`
	LastError      string     `gorm:"column:last_error;type:text"`
	ExpiresAt      *time.Time `gorm:"column:expires_at;index:idx_managed_files_expires"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
}

func (ManagedFilePO) TableName() string {
	return "managed_files"
}

func (po *ManagedFilePO) toDomain() *biz.ManagedFile {
	return &biz.ManagedFile{
		ID:             po.ID,
		OwnerID:        po.OwnerID,
		WorkspaceID:    po.WorkspaceID,
		IdempotencyKey: po.IdempotencyKey,
		FileName:       po.FileName,
		MimeType:       po.MimeType,
		SizeBytes:      po.SizeBytes,
		ObjectKey:      po.ObjectKey,
		RemoteURI:      po.RemoteURI,
		State:          biz.FileState(po.State),
		LastError:      po.LastError,
		ExpiresAt:      po.ExpiresAt,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	}
}

func managedFileToPO(f *biz.ManagedFile) *ManagedFilePO {
	return &ManagedFilePO{
		ID:             f.ID,
		OwnerID:        f.OwnerID,
		WorkspaceID:    f.WorkspaceID,
		IdempotencyKey: f.IdempotencyKey,
		FileName:       f.FileName,
		MimeType:       f.MimeType,
		SizeBytes:      f.SizeBytes,
		ObjectKey:      f.ObjectKey,
		RemoteURI:      f.RemoteURI,
		State:          f.State.String(),
		LastError:      f.LastError,
		ExpiresAt:      f.ExpiresAt,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

type managedFileRepo struct {
	db *database.DB
}

// NewManagedFileRepo creates the gorm-backed file shadow store
func NewManagedFileRepo(db *database.DB) biz.ManagedFileRepo {
	return &managedFileRepo{db: db}
}

func (r *managedFileRepo) Create(ctx context.Context, f *biz.ManagedFile) error {
	if err := r.db.WithContext(ctx).Create(managedFileToPO(f)).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *managedFileRepo) GetByID(ctx context.Context, id string) (*biz.ManagedFile, error) {
	var po ManagedFilePO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

func (r *managedFileRepo) GetByKey(ctx context.Context, idempotencyKey string) (*biz.ManagedFile, error) {
	var po ManagedFilePO
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

func (r *managedFileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*biz.ManagedFile, error) {
	var pos []ManagedFilePO
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	files := make([]*biz.ManagedFile, 0, len(pos))
	for i := range pos {
		files = append(files, pos[i].toDomain())
	}
	return files, nil
}

func (r *managedFileRepo) Update(ctx context.Context, f *biz.ManagedFile) error {
	f.UpdatedAt = time.Now()
	po := managedFileToPO(f)

	// Full-row save so cleared fields (remote_uri, expires_at) are written.
	result := r.db.WithContext(ctx).
		Model(&ManagedFilePO{}).
		Where("id = ?", po.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(po)
	if result.Error != nil {
		return mapStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return biz.ErrNotFound
	}
	return nil
}

func (r *managedFileRepo) FindExpired(ctx context.Context, before time.Time) ([]*biz.ManagedFile, error) {
	var pos []ManagedFilePO
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", before).
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	files := make([]*biz.ManagedFile, 0, len(pos))
	for i := range pos {
		files = append(files, pos[i].toDomain())
	}
	return files, nil
}

func (r *managedFileRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ManagedFilePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

// mapStoreError translates gorm errors into the domain's sentinels
func mapStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return biz.ErrNotFound
	}
	return fmt.Errorf("%w: %v", biz.ErrStoreUnavailable, err)
}
