package service

import (
	"errors"
	"time"

	"github.com/aylahq/ayla-backend/internal/academic/biz"
	"github.com/aylahq/ayla-backend/internal/auth/middleware"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AcademicService exposes the merged events view, reminder creation and
// the deadline push endpoint used by the portal scraper.
type AcademicService struct {
	usecase *biz.AcademicUseCase
	logger  *logger.Logger
}

func NewAcademicService(usecase *biz.AcademicUseCase, log *logger.Logger) *AcademicService {
	return &AcademicService{usecase: usecase, logger: log}
}

// RegisterRoutes mounts the academic endpoints on an authenticated group
func (s *AcademicService) RegisterRoutes(rg *gin.RouterGroup) {
	academic := rg.Group("/academic")
	{
		academic.GET("/events", s.ListEvents)
		academic.DELETE("/events/:id", s.DeleteEvent)
		academic.POST("/reminders", s.CreateReminder)
		academic.POST("/deadlines", s.UpsertDeadlines)
	}
}

type eventView struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	DueAt    string `json:"due_at"`
	Notified bool   `json:"notified"`
}

// ListEvents returns reminders and deadlines merged, soonest first
func (s *AcademicService) ListEvents(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	events, err := s.usecase.ListEvents(c.Request.Context(), owner)
	if err != nil {
		s.writeError(c, err, "failed to list events")
		return
	}

	views := make([]*eventView, 0, len(events))
	for _, e := range events {
		views = append(views, &eventView{
			ID:       e.ID,
			Kind:     string(e.Kind),
			Title:    e.Title,
			Detail:   e.Detail,
			DueAt:    e.DueAt.UTC().Format(time.RFC3339),
			Notified: e.Notified,
		})
	}
	response.Success(c, gin.H{"events": views})
}

// DeleteEvent removes one event; the ID may name a reminder or a deadline
func (s *AcademicService) DeleteEvent(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	if err := s.usecase.DeleteEvent(c.Request.Context(), owner, c.Param("id")); err != nil {
		s.writeError(c, err, "failed to delete event")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

type createReminderRequest struct {
	Title string    `json:"title" binding:"required"`
	Notes string    `json:"notes"`
	Email string    `json:"email"`
	DueAt time.Time `json:"due_at" binding:"required"`
}

func (s *AcademicService) CreateReminder(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "title and due_at are required")
		return
	}

	r, err := s.usecase.CreateReminder(c.Request.Context(), owner, req.Title, req.Notes, req.Email, req.DueAt)
	if err != nil {
		s.writeError(c, err, "failed to create reminder")
		return
	}
	response.Created(c, gin.H{"id": r.ID})
}

type deadlineEntry struct {
	ActivityName string    `json:"activity_name" binding:"required"`
	CourseName   string    `json:"course_name"`
	DueDate      time.Time `json:"due_date" binding:"required"`
	SourceURL    string    `json:"source_url"`
	Email        string    `json:"email"`
}

type upsertDeadlinesRequest struct {
	Deadlines []deadlineEntry `json:"deadlines" binding:"required"`
}

// UpsertDeadlines is the push path for scraped obligations. Posting the
// same batch repeatedly converges instead of duplicating.
func (s *AcademicService) UpsertDeadlines(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	var req upsertDeadlinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "deadlines with activity_name and due_date are required")
		return
	}

	deadlines := make([]*biz.Deadline, 0, len(req.Deadlines))
	for _, e := range req.Deadlines {
		deadlines = append(deadlines, &biz.Deadline{
			ActivityName: e.ActivityName,
			CourseName:   e.CourseName,
			DueDate:      e.DueDate,
			SourceURL:    e.SourceURL,
			Email:        e.Email,
		})
	}

	if err := s.usecase.UpsertDeadlines(c.Request.Context(), owner, deadlines); err != nil {
		s.writeError(c, err, "failed to upsert deadlines")
		return
	}
	response.Success(c, gin.H{"upserted": len(deadlines)})
}

func (s *AcademicService) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, biz.ErrNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, biz.ErrPermissionDenied):
		response.Forbidden(c, "not your event")
	default:
		s.logger.Error(fallback, zap.Error(err))
		response.InternalError(c, fallback)
	}
}
