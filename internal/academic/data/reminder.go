package data

import (
	"context"
	"time"

	"github.com/aylahq/ayla-backend/internal/academic/biz"
	"github.com/aylahq/ayla-backend/internal/pkg/database"
)

// ReminderPO is the persistent object for user reminders
type ReminderPO struct {
	ID        string    `gorm:"column:id;primaryKey;type:uuid"`
	UserID    string    `gorm:"column:user_id;type:varchar(128);not null;index:idx_reminders_user"`
	Email     string    `gorm:"column:email;type:varchar(256)"`
	Title     string    `gorm:"column:title;type:varchar(512);not null"`
	Notes     string    `gorm:"column:notes;type:text"`
	DueAt     time.Time `gorm:"column:due_at;not null;index:idx_reminders_due"`
	Notified  bool      `gorm:"column:notified;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (ReminderPO) TableName() string {
	return "reminders"
}

func (po *ReminderPO) toDomain() *biz.Reminder {
	return &biz.Reminder{
		ID:        po.ID,
		UserID:    po.UserID,
		Email:     po.Email,
		Title:     po.Title,
		Notes:     po.Notes,
		DueAt:     po.DueAt,
		Notified:  po.Notified,
		CreatedAt: po.CreatedAt,
	}
}

func reminderToPO(r *biz.Reminder) *ReminderPO {
	return &ReminderPO{
		ID:        r.ID,
		UserID:    r.UserID,
		Email:     r.Email,
		Title:     r.Title,
		Notes:     r.Notes,
		DueAt:     r.DueAt,
		Notified:  r.Notified,
		CreatedAt: r.CreatedAt,
	}
}

type reminderRepo struct {
	db *database.DB
}

// NewReminderRepo creates the gorm-backed reminder store
func NewReminderRepo(db *database.DB) biz.ReminderRepo {
	return &reminderRepo{db: db}
}

func (r *reminderRepo) Create(ctx context.Context, reminder *biz.Reminder) error {
	if err := r.db.WithContext(ctx).Create(reminderToPO(reminder)).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *reminderRepo) GetByID(ctx context.Context, id string) (*biz.Reminder, error) {
	var po ReminderPO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		return nil, mapStoreError(err)
	}
	return po.toDomain(), nil
}

func (r *reminderRepo) ListByUser(ctx context.Context, userID string) ([]*biz.Reminder, error) {
	var pos []ReminderPO
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("due_at ASC").
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	reminders := make([]*biz.Reminder, 0, len(pos))
	for i := range pos {
		reminders = append(reminders, pos[i].toDomain())
	}
	return reminders, nil
}

func (r *reminderRepo) FindDueUnnotified(ctx context.Context, before time.Time) ([]*biz.Reminder, error) {
	var pos []ReminderPO
	if err := r.db.WithContext(ctx).
		Where("due_at <= ? AND notified = ?", before, false).
		Find(&pos).Error; err != nil {
		return nil, mapStoreError(err)
	}

	reminders := make([]*biz.Reminder, 0, len(pos))
	for i := range pos {
		reminders = append(reminders, pos[i].toDomain())
	}
	return reminders, nil
}

func (r *reminderRepo) MarkNotified(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&ReminderPO{}).
		Where("id = ?", id).
		Update("notified", true)
	if result.Error != nil {
		return mapStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return biz.ErrNotFound
	}
	return nil
}

func (r *reminderRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ReminderPO{}).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}
