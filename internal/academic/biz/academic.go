package biz

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the event does not exist.
	ErrNotFound = errors.New("academic: not found")

	// ErrPermissionDenied means the caller does not own the event.
	ErrPermissionDenied = errors.New("academic: permission denied")
)

// Deadline is one scraped academic obligation. Rows are keyed by
// (user_id, activity_name, due_date): re-scraping the same item updates
// in place, while a moved due date produces a fresh row whose reminder
// has not fired yet.
type Deadline struct {
	ID           string
	UserID       string
	Email        string
	ActivityName string
	CourseName   string
	DueDate      time.Time
	SourceURL    string
	Notified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reminder is a user-created notification request
type Reminder struct {
	ID        string
	UserID    string
	Email     string
	Title     string
	Notes     string
	DueAt     time.Time
	Notified  bool
	CreatedAt time.Time
}

// DeadlineRepo is the persistent store for deadlines. Upsert applies the
// natural-key semantics above and must preserve the notified flag of an
// existing row.
type DeadlineRepo interface {
	Upsert(ctx context.Context, deadlines []*Deadline) error
	GetByID(ctx context.Context, id string) (*Deadline, error)
	ListByUser(ctx context.Context, userID string) ([]*Deadline, error)
	FindDueUnnotified(ctx context.Context, before time.Time) ([]*Deadline, error)
	MarkNotified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ReminderRepo is the persistent store for reminders
type ReminderRepo interface {
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id string) (*Reminder, error)
	ListByUser(ctx context.Context, userID string) ([]*Reminder, error)
	FindDueUnnotified(ctx context.Context, before time.Time) ([]*Reminder, error)
	MarkNotified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// DeadlineSource pulls obligations from an external system. The scraping
// itself lives outside this module; a nil source disables the pull job
// and deadlines arrive through the push endpoint instead.
type DeadlineSource interface {
	Fetch(ctx context.Context) ([]*Deadline, error)
}

// Notifier delivers one notification. Implementations must be safe to
// call more than once for the same event: dispatch notifies before it
// sets the flag, so a crash in between replays the notification.
type Notifier interface {
	NotifyReminder(ctx context.Context, r *Reminder) error
	NotifyDeadline(ctx context.Context, d *Deadline) error
}
