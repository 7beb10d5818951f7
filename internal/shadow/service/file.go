package service

import (
	"errors"
	"time"

	"github.com/aylahq/ayla-backend/internal/auth/middleware"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/response"
	"github.com/aylahq/ayla-backend/internal/shadow/biz"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileService exposes the managed-file shadow records over HTTP:
// status polling, listing, explicit retry and deletion.
type FileService struct {
	uploader *biz.UploadUseCase
	logger   *logger.Logger
}

func NewFileService(uploader *biz.UploadUseCase, log *logger.Logger) *FileService {
	return &FileService{uploader: uploader, logger: log}
}

// RegisterRoutes mounts the file endpoints on an authenticated group
func (s *FileService) RegisterRoutes(rg *gin.RouterGroup) {
	files := rg.Group("/files")
	{
		files.GET("", s.List)
		files.GET("/:id", s.Get)
		files.POST("/:id/retry", s.Retry)
		files.DELETE("/:id", s.Delete)
	}
}

// fileView is the wire representation of a ManagedFile
type fileView struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toFileView(f *biz.ManagedFile) *fileView {
	v := &fileView{
		ID:        f.ID,
		FileName:  f.FileName,
		MimeType:  f.MimeType,
		SizeBytes: f.SizeBytes,
		State:     f.State.String(),
		LastError: f.LastError,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
	}
	if f.ExpiresAt != nil {
		v.ExpiresAt = f.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

// List returns every file shadow owned by the caller
func (s *FileService) List(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	files, err := s.uploader.List(c.Request.Context(), owner)
	if err != nil {
		s.logger.Error("list files failed", zap.Error(err))
		response.InternalError(c, "failed to list files")
		return
	}

	views := make([]*fileView, 0, len(files))
	for _, f := range files {
		views = append(views, toFileView(f))
	}
	response.Success(c, gin.H{"files": views})
}

// Get returns one file shadow for status polling
func (s *FileService) Get(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	f, err := s.uploader.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		s.writeError(c, err, "failed to load file")
		return
	}
	response.Success(c, toFileView(f))
}

// Retry re-drives a failed ingestion. Non-failed files come back unchanged.
func (s *FileService) Retry(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	f, err := s.uploader.Retry(c.Request.Context(), owner, c.Param("id"))
	if err != nil && !errors.Is(err, biz.ErrIngestFailed) {
		s.writeError(c, err, "failed to retry file")
		return
	}
	// A failed retry still returns the record; state carries the reason.
	response.Success(c, toFileView(f))
}

// Delete removes the shadow, its remote resource and its blob
func (s *FileService) Delete(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}
	if !owner.Verified() {
		response.Forbidden(c, "deletion requires a verified identity")
		return
	}

	if err := s.uploader.Remove(c.Request.Context(), owner, c.Param("id")); err != nil {
		s.writeError(c, err, "failed to delete file")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (s *FileService) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, biz.ErrNotFound):
		response.NotFound(c, "file not found")
	case errors.Is(err, biz.ErrPermissionDenied):
		response.Forbidden(c, "not your file")
	default:
		s.logger.Error(fallback, zap.Error(err))
		response.InternalError(c, fallback)
	}
}
