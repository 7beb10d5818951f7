package biz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aylahq/ayla-backend/internal/auth"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeadlineRepo struct {
	mu        sync.Mutex
	deadlines map[string]*Deadline // keyed by ID
	markErr   error
}

func newFakeDeadlineRepo() *fakeDeadlineRepo {
	return &fakeDeadlineRepo{deadlines: make(map[string]*Deadline)}
}

func (r *fakeDeadlineRepo) naturalKey(d *Deadline) string {
	return d.UserID + "|" + d.ActivityName + "|" + d.DueDate.UTC().Format(time.RFC3339)
}

func (r *fakeDeadlineRepo) Upsert(_ context.Context, deadlines []*Deadline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range deadlines {
		var existing *Deadline
		for _, have := range r.deadlines {
			if r.naturalKey(have) == r.naturalKey(d) {
				existing = have
				break
			}
		}
		if existing != nil {
			existing.Email = d.Email
			existing.CourseName = d.CourseName
			existing.SourceURL = d.SourceURL
			existing.UpdatedAt = d.UpdatedAt
			continue
		}
		cp := *d
		r.deadlines[d.ID] = &cp
	}
	return nil
}

func (r *fakeDeadlineRepo) GetByID(_ context.Context, id string) (*Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deadlines[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDeadlineRepo) ListByUser(_ context.Context, userID string) ([]*Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Deadline
	for _, d := range r.deadlines {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDeadlineRepo) FindDueUnnotified(_ context.Context, before time.Time) ([]*Deadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Deadline
	for _, d := range r.deadlines {
		if !d.Notified && !d.DueDate.After(before) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDeadlineRepo) MarkNotified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	d, ok := r.deadlines[id]
	if !ok {
		return ErrNotFound
	}
	d.Notified = true
	return nil
}

func (r *fakeDeadlineRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deadlines, id)
	return nil
}

func (r *fakeDeadlineRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deadlines)
}

type fakeReminderRepo struct {
	mu        sync.Mutex
	reminders map[string]*Reminder
	markErr   error
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{reminders: make(map[string]*Reminder)}
}

func (r *fakeReminderRepo) Create(_ context.Context, reminder *Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *reminder
	r.reminders[reminder.ID] = &cp
	return nil
}

func (r *fakeReminderRepo) GetByID(_ context.Context, id string) (*Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.reminders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rem
	return &cp, nil
}

func (r *fakeReminderRepo) ListByUser(_ context.Context, userID string) ([]*Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Reminder
	for _, rem := range r.reminders {
		if rem.UserID == userID {
			cp := *rem
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeReminderRepo) FindDueUnnotified(_ context.Context, before time.Time) ([]*Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Reminder
	for _, rem := range r.reminders {
		if !rem.Notified && !rem.DueAt.After(before) {
			cp := *rem
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeReminderRepo) MarkNotified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	rem, ok := r.reminders[id]
	if !ok {
		return ErrNotFound
	}
	rem.Notified = true
	return nil
}

func (r *fakeReminderRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reminders, id)
	return nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	reminderSends int
	deadlineSends int
	failNext      int
}

func (n *fakeNotifier) NotifyReminder(_ context.Context, _ *Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext > 0 {
		n.failNext--
		return errors.New("smtp down")
	}
	n.reminderSends++
	return nil
}

func (n *fakeNotifier) NotifyDeadline(_ context.Context, _ *Deadline) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext > 0 {
		n.failNext--
		return errors.New("smtp down")
	}
	n.deadlineSends++
	return nil
}

type fakeSource struct {
	deadlines []*Deadline
	err       error
}

func (s *fakeSource) Fetch(context.Context) ([]*Deadline, error) {
	return s.deadlines, s.err
}

func newTestAcademic(d *fakeDeadlineRepo, r *fakeReminderRepo, src DeadlineSource, n Notifier) *AcademicUseCase {
	return NewAcademicUseCase(d, r, src, n, logger.Nop())
}

func TestUpsertDeadlinesIdempotent(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	uc := newTestAcademic(deadlines, reminders, nil, &fakeNotifier{})
	owner := auth.Account("user-1")

	due := time.Now().Add(72 * time.Hour).Truncate(time.Second)
	batch := func() []*Deadline {
		return []*Deadline{
			{ActivityName: "Essay 2", CourseName: "History", DueDate: due},
			{ActivityName: "Lab report", CourseName: "Physics", DueDate: due},
		}
	}

	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, batch()))
	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, batch()))

	assert.Equal(t, 2, deadlines.count(), "re-posting the same batch must converge")
}

func TestUpsertPreservesNotifiedFlag(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	notifier := &fakeNotifier{}
	uc := newTestAcademic(deadlines, reminders, nil, notifier)
	owner := auth.Account("user-1")

	due := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, []*Deadline{
		{ActivityName: "Quiz", DueDate: due, Email: "u@example.edu"},
	}))
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	assert.Equal(t, 1, notifier.deadlineSends)

	// The scraper posts the same obligation again.
	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, []*Deadline{
		{ActivityName: "Quiz", DueDate: due, Email: "u@example.edu"},
	}))
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	assert.Equal(t, 1, notifier.deadlineSends, "re-upsert must not rearm the notification")
}

func TestReminderDispatchAtLeastOnce(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	notifier := &fakeNotifier{failNext: 1}
	uc := newTestAcademic(deadlines, reminders, nil, notifier)
	owner := auth.Account("user-1")

	r, err := uc.CreateReminder(context.Background(), owner,
		"Submit thesis draft", "", "u@example.edu", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	// First run: notifier is down, the flag must stay clear.
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	kept, err := reminders.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, kept.Notified)
	assert.Equal(t, 0, notifier.reminderSends)

	// Second run delivers and flags.
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	flagged, err := reminders.GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, flagged.Notified)
	assert.Equal(t, 1, notifier.reminderSends)

	// Third run finds nothing due.
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	assert.Equal(t, 1, notifier.reminderSends)
}

func TestReminderRedeliveredWhenFlagWriteFails(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	notifier := &fakeNotifier{}
	uc := newTestAcademic(deadlines, reminders, nil, notifier)
	owner := auth.Account("user-1")

	_, err := uc.CreateReminder(context.Background(), owner,
		"Pay tuition", "", "u@example.edu", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	reminders.markErr = errors.New("store down")
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	assert.Equal(t, 1, notifier.reminderSends)

	reminders.markErr = nil
	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	assert.Equal(t, 2, notifier.reminderSends, "notify-then-flag replays on flag failure")
}

func TestDeadlineDispatchHonorsNoticeWindow(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	notifier := &fakeNotifier{}
	uc := newTestAcademic(deadlines, reminders, nil, notifier)
	owner := auth.Account("user-1")

	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, []*Deadline{
		{ActivityName: "Soon", DueDate: time.Now().Add(12 * time.Hour), Email: "u@example.edu"},
		{ActivityName: "Far", DueDate: time.Now().Add(96 * time.Hour), Email: "u@example.edu"},
	}))

	require.NoError(t, uc.RunReminderDispatch(context.Background()))
	assert.Equal(t, 1, notifier.deadlineSends, "only the deadline inside the notice window fires")
}

func TestDeadlineSyncPullsFromSource(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	source := &fakeSource{deadlines: []*Deadline{
		{UserID: "user-1", ActivityName: "Exam", DueDate: time.Now().Add(time.Hour)},
	}}
	uc := newTestAcademic(deadlines, reminders, source, &fakeNotifier{})

	require.NoError(t, uc.RunDeadlineSync(context.Background()))
	assert.Equal(t, 1, deadlines.count())
}

func TestDeadlineSyncWithoutSourceIsNoop(t *testing.T) {
	uc := newTestAcademic(newFakeDeadlineRepo(), newFakeReminderRepo(), nil, &fakeNotifier{})
	assert.NoError(t, uc.RunDeadlineSync(context.Background()))
}

func TestListEventsMergesSorted(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	uc := newTestAcademic(deadlines, reminders, nil, &fakeNotifier{})
	owner := auth.Account("user-1")

	_, err := uc.CreateReminder(context.Background(), owner,
		"Later reminder", "", "", time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, []*Deadline{
		{ActivityName: "Earlier deadline", DueDate: time.Now().Add(time.Hour)},
	}))

	events, err := uc.ListEvents(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventKindDeadline, events[0].Kind)
	assert.Equal(t, EventKindReminder, events[1].Kind)
}

func TestDeleteEventTriesRemindersFirstThenDeadlines(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	uc := newTestAcademic(deadlines, reminders, nil, &fakeNotifier{})
	owner := auth.Account("user-1")

	r, err := uc.CreateReminder(context.Background(), owner,
		"Reminder", "", "", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, uc.UpsertDeadlines(context.Background(), owner, []*Deadline{
		{ActivityName: "Deadline", DueDate: time.Now().Add(time.Hour)},
	}))

	require.NoError(t, uc.DeleteEvent(context.Background(), owner, r.ID))
	_, err = reminders.GetByID(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, deadlines.count())

	all, err := uc.ListEvents(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NoError(t, uc.DeleteEvent(context.Background(), owner, all[0].ID))
	assert.Equal(t, 0, deadlines.count())
}

func TestDeleteEventRejectsForeignOwner(t *testing.T) {
	deadlines := newFakeDeadlineRepo()
	reminders := newFakeReminderRepo()
	uc := newTestAcademic(deadlines, reminders, nil, &fakeNotifier{})

	r, err := uc.CreateReminder(context.Background(), auth.Account("user-1"),
		"Mine", "", "", time.Now().Add(time.Hour))
	require.NoError(t, err)

	err = uc.DeleteEvent(context.Background(), auth.Account("user-2"), r.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
