package gemini

import "time"

// RemoteFileState is the processing state reported by the service
type RemoteFileState string

const (
	RemoteFileProcessing RemoteFileState = "PROCESSING"
	RemoteFileActive     RemoteFileState = "ACTIVE"
	RemoteFileFailed     RemoteFileState = "FAILED"
)

// JobState is the state of an asynchronous ingest job
type JobState string

const (
	JobStatePending JobState = "pending"
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)

// RemoteFile describes a file held by the ingestion service
type RemoteFile struct {
	Name       string          `json:"name"`
	URI        string          `json:"uri"`
	MimeType   string          `json:"mime_type"`
	State      RemoteFileState `json:"state"`
	ExpireTime *time.Time      `json:"expire_time,omitempty"`
}

// UploadRequest carries inline file content for the synchronous path
type UploadRequest struct {
	DisplayName string `json:"display_name"`
	MimeType    string `json:"mime_type"`
	Data        []byte `json:"data"` // base64 on the wire
}

// uploadResponse wraps the synchronous upload result
type uploadResponse struct {
	File *RemoteFile `json:"file"`
}

// createJobResponse wraps the async submission result
type createJobResponse struct {
	JobID string `json:"job_id"`
}

// IngestJob is the state of an asynchronous ingestion
type IngestJob struct {
	JobID        string      `json:"job_id"`
	State        JobState    `json:"state"`
	File         *RemoteFile `json:"file,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// FileRef references an already-ingested file in a cache request
type FileRef struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
}

// CreateCacheRequest materializes a workspace context into a cached content
type CreateCacheRequest struct {
	Model             string    `json:"model"`
	DisplayName       string    `json:"display_name,omitempty"`
	SystemInstruction string    `json:"system_instruction,omitempty"`
	Text              string    `json:"text,omitempty"`
	Files             []FileRef `json:"files,omitempty"`
	TTLSeconds        int64     `json:"ttl_seconds"`
}

// CachedContent is the handle to a server-side context cache
type CachedContent struct {
	Name       string    `json:"name"`
	TokenCount int       `json:"token_count"`
	ExpireTime time.Time `json:"expire_time"`
}
