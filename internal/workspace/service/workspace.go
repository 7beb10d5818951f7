package service

import (
	"errors"
	"io"
	"time"

	"github.com/aylahq/ayla-backend/internal/auth/middleware"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/response"
	shadowbiz "github.com/aylahq/ayla-backend/internal/shadow/biz"
	"github.com/aylahq/ayla-backend/internal/workspace/biz"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUploadBytes bounds one multipart upload (100 MiB)
const maxUploadBytes = 100 << 20

// WorkspaceService exposes workspaces, their files and the chat-context
// endpoint over HTTP.
type WorkspaceService struct {
	usecase *biz.WorkspaceUseCase
	logger  *logger.Logger
}

func NewWorkspaceService(usecase *biz.WorkspaceUseCase, log *logger.Logger) *WorkspaceService {
	return &WorkspaceService{usecase: usecase, logger: log}
}

// RegisterRoutes mounts the workspace endpoints on an authenticated group
func (s *WorkspaceService) RegisterRoutes(rg *gin.RouterGroup) {
	ws := rg.Group("/workspaces")
	{
		ws.POST("", s.Create)
		ws.GET("", s.List)
		ws.GET("/:id", s.Get)
		ws.PUT("/:id/notes", s.UpdateNotes)
		ws.DELETE("/:id", s.Delete)

		ws.POST("/:id/files", s.UploadFile)
		ws.GET("/:id/files", s.ListFiles)
		ws.DELETE("/:id/files/:fileId", s.RemoveFile)

		ws.GET("/:id/chat-context", s.ChatContext)
	}
}

type createWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

type workspaceView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toWorkspaceView(w *biz.Workspace) *workspaceView {
	return &workspaceView{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Notes:       w.Notes,
		CreatedAt:   w.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type workspaceFileView struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentHash string `json:"content_hash"`
	CreatedAt   string `json:"created_at"`
}

func toWorkspaceFileView(f *biz.WorkspaceFile) *workspaceFileView {
	return &workspaceFileView{
		ID:          f.ID,
		FileName:    f.FileName,
		MimeType:    f.MimeType,
		SizeBytes:   f.SizeBytes,
		ContentHash: f.ContentHash,
		CreatedAt:   f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *WorkspaceService) Create(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}

	w, err := s.usecase.Create(c.Request.Context(), owner, req.Name, req.Description)
	if err != nil {
		s.writeError(c, err, "failed to create workspace")
		return
	}
	response.Created(c, toWorkspaceView(w))
}

func (s *WorkspaceService) List(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	workspaces, err := s.usecase.List(c.Request.Context(), owner)
	if err != nil {
		s.writeError(c, err, "failed to list workspaces")
		return
	}

	views := make([]*workspaceView, 0, len(workspaces))
	for _, w := range workspaces {
		views = append(views, toWorkspaceView(w))
	}
	response.Success(c, gin.H{"workspaces": views})
}

func (s *WorkspaceService) Get(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	w, err := s.usecase.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		s.writeError(c, err, "failed to load workspace")
		return
	}
	response.Success(c, toWorkspaceView(w))
}

func (s *WorkspaceService) UpdateNotes(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	var req updateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	w, err := s.usecase.UpdateNotes(c.Request.Context(), owner, c.Param("id"), req.Notes)
	if err != nil {
		s.writeError(c, err, "failed to update notes")
		return
	}
	response.Success(c, toWorkspaceView(w))
}

func (s *WorkspaceService) Delete(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}
	if !owner.Verified() {
		response.Forbidden(c, "deletion requires a verified identity")
		return
	}

	if err := s.usecase.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		s.writeError(c, err, "failed to delete workspace")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// UploadFile accepts one multipart file, stores it and starts ingestion.
// The 202 tells clients to poll the file endpoint for the terminal state.
func (s *WorkspaceService) UploadFile(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file field is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.BadRequest(c, "file too large")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "unreadable upload")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		response.BadRequest(c, "unreadable upload")
		return
	}
	if int64(len(data)) > maxUploadBytes {
		response.BadRequest(c, "file too large")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	f, err := s.usecase.AddFile(c.Request.Context(), owner, c.Param("id"), &biz.FileUpload{
		FileName: fileHeader.Filename,
		MimeType: mimeType,
		Data:     data,
	})
	if err != nil {
		s.writeError(c, err, "failed to store upload")
		return
	}
	response.Accepted(c, toWorkspaceFileView(f))
}

func (s *WorkspaceService) ListFiles(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	files, err := s.usecase.ListFiles(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		s.writeError(c, err, "failed to list files")
		return
	}

	views := make([]*workspaceFileView, 0, len(files))
	for _, f := range files {
		views = append(views, toWorkspaceFileView(f))
	}
	response.Success(c, gin.H{"files": views})
}

func (s *WorkspaceService) RemoveFile(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}
	if !owner.Verified() {
		response.Forbidden(c, "deletion requires a verified identity")
		return
	}

	err := s.usecase.RemoveFile(c.Request.Context(), owner, c.Param("id"), c.Param("fileId"))
	if err != nil {
		s.writeError(c, err, "failed to remove file")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

type chatContextView struct {
	WorkspaceID  string          `json:"workspace_id"`
	Cached       bool            `json:"cached"`
	ResourceName string          `json:"resource_name,omitempty"`
	TokenCount   int             `json:"token_count,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	Files        []chatFileEntry `json:"files,omitempty"`
}

type chatFileEntry struct {
	RemoteURI string `json:"remote_uri"`
	MimeType  string `json:"mime_type"`
}

// ChatContext resolves the workspace into what a chat request should
// send: a cache handle, or the raw notes and file references when the
// context is not cacheable.
func (s *WorkspaceService) ChatContext(c *gin.Context) {
	owner, ok := middleware.OwnerFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing identity")
		return
	}

	cc, err := s.usecase.BuildChatContext(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		s.writeError(c, err, "failed to build chat context")
		return
	}

	view := &chatContextView{
		WorkspaceID:  cc.WorkspaceID,
		Cached:       cc.Cached,
		ResourceName: cc.ResourceName,
		TokenCount:   cc.TokenCount,
		Notes:        cc.Notes,
	}
	for _, f := range cc.Files {
		view.Files = append(view.Files, chatFileEntry{
			RemoteURI: f.RemoteURI,
			MimeType:  f.MimeType,
		})
	}
	response.Success(c, view)
}

func (s *WorkspaceService) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, biz.ErrNotFound), errors.Is(err, shadowbiz.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, biz.ErrPermissionDenied), errors.Is(err, shadowbiz.ErrPermissionDenied):
		response.Forbidden(c, "not your workspace")
	default:
		s.logger.Error(fallback, zap.Error(err))
		response.InternalError(c, fallback)
	}
}
