package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aylahq/ayla-backend/internal/auth"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// deadlineNoticeWindow is how far ahead of the due date a deadline
// notification fires.
const deadlineNoticeWindow = 24 * time.Hour

// AcademicUseCase owns deadlines and reminders: the periodic pull and
// dispatch jobs, the push upsert used by the scraper extension, and the
// merged events view.
type AcademicUseCase struct {
	deadlines DeadlineRepo
	reminders ReminderRepo
	source    DeadlineSource
	notifier  Notifier
	logger    *logger.Logger
}

func NewAcademicUseCase(
	deadlines DeadlineRepo,
	reminders ReminderRepo,
	source DeadlineSource,
	notifier Notifier,
	log *logger.Logger,
) *AcademicUseCase {
	return &AcademicUseCase{
		deadlines: deadlines,
		reminders: reminders,
		source:    source,
		notifier:  notifier,
		logger:    log,
	}
}

// RunDeadlineSync pulls from the configured source and upserts. With no
// source configured the job is a no-op; deadlines then arrive through
// UpsertDeadlines.
func (uc *AcademicUseCase) RunDeadlineSync(ctx context.Context) error {
	if uc.source == nil {
		uc.logger.Debug("no deadline source configured, skipping pull")
		return nil
	}

	fetched, err := uc.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch deadlines: %w", err)
	}
	if len(fetched) == 0 {
		return nil
	}
	if err := uc.upsert(ctx, fetched); err != nil {
		return err
	}

	uc.logger.Info("deadline sync complete", zap.Int("fetched", len(fetched)))
	return nil
}

// UpsertDeadlines is the push path: the scraper posts what it currently
// sees and the repo converges rows on the natural key. Posting the same
// batch twice changes nothing.
func (uc *AcademicUseCase) UpsertDeadlines(ctx context.Context, owner auth.OwnerRef, deadlines []*Deadline) error {
	for _, d := range deadlines {
		if strings.TrimSpace(d.ActivityName) == "" || d.DueDate.IsZero() {
			return fmt.Errorf("deadline requires activity name and due date")
		}
		d.UserID = owner.ID
	}
	return uc.upsert(ctx, deadlines)
}

func (uc *AcademicUseCase) upsert(ctx context.Context, deadlines []*Deadline) error {
	now := time.Now()
	for _, d := range deadlines {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.CreatedAt = now
		d.UpdatedAt = now
	}
	return uc.deadlines.Upsert(ctx, deadlines)
}

// RunReminderDispatch notifies every due, unnotified reminder and every
// deadline entering its notice window. Notification precedes the flag
// write, so delivery is at least once; a notifier failure leaves the row
// unflagged for the next run.
func (uc *AcademicUseCase) RunReminderDispatch(ctx context.Context) error {
	now := time.Now()

	due, err := uc.reminders.FindDueUnnotified(ctx, now)
	if err != nil {
		return err
	}
	for _, r := range due {
		if err := uc.notifier.NotifyReminder(ctx, r); err != nil {
			uc.logger.Warn("reminder notification failed",
				zap.String("reminder_id", r.ID),
				zap.Error(err))
			continue
		}
		if err := uc.reminders.MarkNotified(ctx, r.ID); err != nil {
			uc.logger.Error("failed to flag notified reminder",
				zap.String("reminder_id", r.ID),
				zap.Error(err))
		}
	}

	upcoming, err := uc.deadlines.FindDueUnnotified(ctx, now.Add(deadlineNoticeWindow))
	if err != nil {
		return err
	}
	for _, d := range upcoming {
		if err := uc.notifier.NotifyDeadline(ctx, d); err != nil {
			uc.logger.Warn("deadline notification failed",
				zap.String("deadline_id", d.ID),
				zap.Error(err))
			continue
		}
		if err := uc.deadlines.MarkNotified(ctx, d.ID); err != nil {
			uc.logger.Error("failed to flag notified deadline",
				zap.String("deadline_id", d.ID),
				zap.Error(err))
		}
	}
	return nil
}

// CreateReminder adds a user reminder
func (uc *AcademicUseCase) CreateReminder(ctx context.Context, owner auth.OwnerRef, title, notes, email string, dueAt time.Time) (*Reminder, error) {
	if strings.TrimSpace(title) == "" || dueAt.IsZero() {
		return nil, fmt.Errorf("reminder requires title and due time")
	}

	r := &Reminder{
		ID:        uuid.New().String(),
		UserID:    owner.ID,
		Email:     email,
		Title:     title,
		Notes:     notes,
		DueAt:     dueAt,
		CreatedAt: time.Now(),
	}
	if err := uc.reminders.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// EventKind distinguishes the two event sources in the merged view
type EventKind string

const (
	EventKindReminder EventKind = "reminder"
	EventKindDeadline EventKind = "deadline"
)

// Event is one entry of the merged calendar view
type Event struct {
	ID       string
	Kind     EventKind
	Title    string
	Detail   string
	DueAt    time.Time
	Notified bool
}

// ListEvents merges the user's reminders and deadlines, soonest first
func (uc *AcademicUseCase) ListEvents(ctx context.Context, owner auth.OwnerRef) ([]*Event, error) {
	reminders, err := uc.reminders.ListByUser(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	deadlines, err := uc.deadlines.ListByUser(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(reminders)+len(deadlines))
	for _, r := range reminders {
		events = append(events, &Event{
			ID:       r.ID,
			Kind:     EventKindReminder,
			Title:    r.Title,
			Detail:   r.Notes,
			DueAt:    r.DueAt,
			Notified: r.Notified,
		})
	}
	for _, d := range deadlines {
		events = append(events, &Event{
			ID:       d.ID,
			Kind:     EventKindDeadline,
			Title:    d.ActivityName,
			Detail:   d.CourseName,
			DueAt:    d.DueDate,
			Notified: d.Notified,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].DueAt.Before(events[j].DueAt)
	})
	return events, nil
}

// DeleteEvent removes an event by ID: reminders first, then deadlines,
// since the merged view does not tell the caller which table an ID
// belongs to.
func (uc *AcademicUseCase) DeleteEvent(ctx context.Context, owner auth.OwnerRef, id string) error {
	if r, err := uc.reminders.GetByID(ctx, id); err == nil {
		if !owner.Owns(r.UserID) {
			return ErrPermissionDenied
		}
		return uc.reminders.Delete(ctx, id)
	}

	d, err := uc.deadlines.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !owner.Owns(d.UserID) {
		return ErrPermissionDenied
	}
	return uc.deadlines.Delete(ctx, id)
}
