package service

import (
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/response"
	"github.com/aylahq/ayla-backend/internal/shadow/biz"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Job names shared between the reconciliation loop and the internal
// endpoints that let an external scheduler trigger the same work.
const (
	JobCacheCleanup     = "cache-cleanup"
	JobFileCleanup      = "file-cleanup"
	JobDeadlineSync     = "deadline-sync"
	JobReminderDispatch = "reminder-dispatch"
)

// JobService exposes the reconciliation jobs to an external scheduler.
// Each handler funnels through the loop's per-job lock, so a cron firing
// while the loop's own tick is running collapses to one execution.
type JobService struct {
	loop   *biz.Loop
	logger *logger.Logger
}

func NewJobService(loop *biz.Loop, log *logger.Logger) *JobService {
	return &JobService{loop: loop, logger: log}
}

// RegisterRoutes mounts the job endpoints on a service-key-guarded group
func (s *JobService) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	{
		jobs.POST("/cache-cleanup", s.trigger(JobCacheCleanup))
		jobs.POST("/file-cleanup", s.trigger(JobFileCleanup))
		jobs.POST("/deadline-sync", s.trigger(JobDeadlineSync))
		jobs.POST("/reminder-dispatch", s.trigger(JobReminderDispatch))
	}
}

func (s *JobService) trigger(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ran, err := s.loop.RunNow(c.Request.Context(), name)
		if err != nil {
			s.logger.Error("triggered job failed",
				zap.String("job", name),
				zap.Error(err))
			response.InternalError(c, "job failed")
			return
		}
		// A run already in flight elsewhere satisfies the trigger.
		response.Success(c, gin.H{"job": name, "ran": ran})
	}
}
