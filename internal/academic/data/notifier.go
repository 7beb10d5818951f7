package data

import (
	"context"
	"fmt"

	"github.com/aylahq/ayla-backend/internal/academic/biz"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/mailer"
	"go.uber.org/zap"
)

type mailNotifier struct {
	mailer *mailer.Mailer
	logger *logger.Logger
}

// NewMailNotifier delivers reminders and deadline notices over SMTP.
// Events without an email address are skipped, not failed: flagging them
// notified keeps dispatch from re-selecting them forever.
func NewMailNotifier(m *mailer.Mailer, log *logger.Logger) biz.Notifier {
	return &mailNotifier{mailer: m, logger: log}
}

func (n *mailNotifier) NotifyReminder(ctx context.Context, r *biz.Reminder) error {
	if r.Email == "" {
		n.logger.Warn("reminder has no email address, skipping delivery",
			zap.String("reminder_id", r.ID))
		return nil
	}

	body := fmt.Sprintf("Reminder: %s\n\n%s\nDue: %s\n",
		r.Title, r.Notes, r.DueAt.Local().Format("Mon, 2 Jan 2006 15:04"))
	return n.mailer.Send(ctx, r.Email, "Reminder: "+r.Title, body)
}

func (n *mailNotifier) NotifyDeadline(ctx context.Context, d *biz.Deadline) error {
	if d.Email == "" {
		n.logger.Warn("deadline has no email address, skipping delivery",
			zap.String("deadline_id", d.ID))
		return nil
	}

	body := fmt.Sprintf("Upcoming deadline: %s\nCourse: %s\nDue: %s\n",
		d.ActivityName, d.CourseName, d.DueDate.Local().Format("Mon, 2 Jan 2006 15:04"))
	if d.SourceURL != "" {
		body += "\n" + d.SourceURL + "\n"
	}
	return n.mailer.Send(ctx, d.Email, "Deadline approaching: "+d.ActivityName, body)
}
