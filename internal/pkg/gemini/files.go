package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// UploadInline uploads file content in a single synchronous call.
// Suitable for content under the inline size threshold; the response carries
// the terminal state directly.
func (c *Client) UploadInline(ctx context.Context, req *UploadRequest) (*RemoteFile, error) {
	var resp uploadResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/files:uploadInline", req, &resp); err != nil {
		return nil, err
	}

	if resp.File == nil || resp.File.Name == "" {
		return nil, ErrEmptyResponse
	}

	c.logger.Info("file uploaded inline",
		zap.String("name", resp.File.Name),
		zap.String("state", string(resp.File.State)),
	)

	return resp.File, nil
}

// CreateIngestJob submits content to the asynchronous ingestion path and
// returns a job identifier to poll.
func (c *Client) CreateIngestJob(ctx context.Context, req *UploadRequest) (string, error) {
	var resp createJobResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/files:ingest", req, &resp); err != nil {
		return "", err
	}

	if resp.JobID == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("ingest job created",
		zap.String("job_id", resp.JobID),
		zap.String("display_name", req.DisplayName),
	)

	return resp.JobID, nil
}

// GetIngestJob fetches the current job state
func (c *Client) GetIngestJob(ctx context.Context, jobID string) (*IngestJob, error) {
	if jobID == "" {
		return nil, fmt.Errorf("gemini: job_id is required")
	}

	path := "/v1/ingest/" + url.PathEscape(jobID)
	var job IngestJob
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForIngest polls a job until it reaches a terminal state
func (c *Client) WaitForIngest(ctx context.Context, jobID string, opts *PollOptions) (*RemoteFile, error) {
	if opts == nil {
		opts = c.config.DefaultPollOptions()
	}

	c.logger.Info("waiting for ingest job",
		zap.String("job_id", jobID),
		zap.Duration("timeout", opts.Timeout),
		zap.Duration("interval", opts.Interval),
	)

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			return nil, ErrTimeout
		case <-ticker.C:
			job, err := c.GetIngestJob(timeoutCtx, jobID)
			if err != nil {
				return nil, err
			}

			switch job.State {
			case JobStateDone:
				if job.File == nil {
					return nil, ErrEmptyResponse
				}
				c.logger.Info("ingest job completed",
					zap.String("job_id", jobID),
					zap.String("file", job.File.Name),
				)
				return job.File, nil

			case JobStateFailed:
				c.logger.Error("ingest job failed",
					zap.String("job_id", jobID),
					zap.String("error", job.ErrorMessage),
				)
				return nil, &APIError{
					StatusCode: http.StatusUnprocessableEntity,
					Code:       "INGEST_FAILED",
					Message:    job.ErrorMessage,
				}

			case JobStatePending, JobStateRunning:
				continue

			default:
				c.logger.Warn("unknown ingest job state",
					zap.String("job_id", jobID),
					zap.String("state", string(job.State)),
				)
				continue
			}
		}
	}
}

// GetFile fetches the current remote state of a file. A 404 means the
// service reclaimed it; callers use this for drift detection.
func (c *Client) GetFile(ctx context.Context, name string) (*RemoteFile, error) {
	if name == "" {
		return nil, fmt.Errorf("gemini: file name is required")
	}

	path := "/v1/files/" + url.PathEscape(name)
	var file RemoteFile
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFile removes a file from the service. Already-gone files are
// reported via an APIError that IsNotFound matches.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("gemini: file name is required")
	}

	path := "/v1/files/" + url.PathEscape(name)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}
