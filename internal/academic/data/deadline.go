package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aylahq/ayla-backend/internal/academic/biz"
	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeadlinePO is the persistent object for scraped deadlines. The unique
// index over (user_id, activity_name, due_date) is the upsert key.
type DeadlinePO struct {
	ID           string    `gorm:"column:id;primaryKey;type:uuid"`
	UserID       string    `gorm:"column:user_id;type:varchar(128);not null;uniqueIndex:uk_deadlines_natural,priority:1"`
	Email        string    `gorm:"column:email;type:varchar(256)"`
	ActivityName string    `gorm:"column:activity_name;type:varchar(512);not null;uniqueIndex:uk_deadlines_natural,priority:2"`
	CourseName   string    `gorm:"column:course_name;type:varchar(256)"`
	DueDate      time.Time `gorm:"column:due_date;not null;uniqueIndex:uk_deadlines_natural,priority:3;index:idx_deadlines_due"`
	SourceURL    string    `gorm:"column:source_url;type:varchar(1024)"`
	Notified     bool      `gorm:"column:notified;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (DeadlinePO) TableName() string {
	return "student_deadlines"
}

func (po *DeadlinePO) toDomain() *biz.Deadline {
	return &biz.Deadline{
		ID:           po.ID,
		UserID:       po.UserID,
		Email:        po.Email,
		ActivityName: po.ActivityName,
		CourseName:   po.CourseName,
		DueDate:      po.DueDate,
		SourceURL:    po.SourceURL,
		Notified:     po.Notified,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
}

func deadlineToPO(d *biz.Deadline) *DeadlinePO {
	return &DeadlinePO{
		ID:           d.ID,
		UserID:       d.UserID,
		Email:        d.Email,
		ActivityName: d.ActivityName,
		CourseName:   d.CourseName,
		DueDate:      d.DueDate,
		SourceURL:    d.SourceURL,
		Notified:     d.Notified,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type deadlineRepo struct {
	db *database.DB
}

// NewDeadlineRepo creates the gorm-backed deadline store
func NewDeadlineRepo(db *database.DB) biz.DeadlineRepo {
	return &deadlineRepo{db: db}
}

// Upsert converges on the natural key. Conflicting rows keep their ID and
// notified flag; only the descriptive columns move.
func (r *deadlineRepo) Upsert(ctx context.Context, deadlines []*biz.Deadline) error {
	if len(deadlines) == 0 {
		return nil
	}

	pos := make([]*DeadlinePO, 0, len(deadlines))
	for _, d := range deadlines {
		pos = append(pos, deadlineToPO(d))
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "activity_name"},
			{Name: "due_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "course_name", "source_url", "updated_at",
		}),
	}).Create(&pos).Error
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *deadlineRepo) GetByID(ctx context.Context, id string) (*biz.Deadline, error) {
	var po DeadlinePO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

func (r *deadlineRepo) ListByUser(ctx context.Context, userID string) ([]*biz.Deadline, error) {
	var pos []DeadlinePO
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("due_date ASC").
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return deadlinesToDomain(pos), nil
}

func (r *deadlineRepo) FindDueUnnotified(ctx context.Context, before time.Time) ([]*biz.Deadline, error) {
	var pos []DeadlinePO
	if err := r.db.WithContext(ctx).
		Where("due_date <= ? AND notified = ?", before, false).
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return deadlinesToDomain(pos), nil
}

func (r *deadlineRepo) MarkNotified(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&DeadlinePO{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"notified": true, "updated_at": time.Now()})
	if result.Error != nil {
		return mapStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return biz.ErrNotFound
	}
	return nil
}

func (r *deadlineRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&DeadlinePO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func deadlinesToDomain(pos []DeadlinePO) []*biz.Deadline {
	deadlines := make([]*biz.Deadline, 0, len(pos))
	for i := range pos {
		deadlines = append(deadlines, pos[i].toDomain())
	}
	return deadlines
}

func mapStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return biz.ErrNotFound
	}
	return fmt.Errorf("academic store: %w", err)
}
