package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// CreateCache materializes a context into a server-side cached content.
// The service rejects contexts below its minimum token count; callers
// detect that case with IsContentTooSmall and fall back to uncached requests.
func (c *Client) CreateCache(ctx context.Context, req *CreateCacheRequest) (*CachedContent, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}

	var cached CachedContent
	if err := c.doRequest(ctx, http.MethodPost, "/v1/cachedContents", req, &cached); err != nil {
		return nil, err
	}

	if cached.Name == "" {
		return nil, ErrEmptyResponse
	}

	c.logger.Info("cached content created",
		zap.String("name", cached.Name),
		zap.Int("token_count", cached.TokenCount),
		zap.Time("expire_time", cached.ExpireTime),
	)

	return &cached, nil
}

// DeleteCache removes a cached content. Already-expired caches surface a
// not-found APIError which callers treat as success.
func (c *Client) DeleteCache(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("gemini: cache name is required")
	}

	path := "/v1/cachedContents/" + url.PathEscape(name)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}
