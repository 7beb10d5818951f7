package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// PutObject uploads raw bytes under the given object key
func (c *Client) PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		c.logger.Error("object upload failed",
			zap.String("bucket", c.bucket),
			zap.String("key", objectKey),
			zap.Error(err),
		)
		return fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}

	c.logger.Debug("object uploaded",
		zap.String("key", objectKey),
		zap.Int("size", len(data)),
	)
	return nil
}

// GetObject downloads the full object content
func (c *Client) GetObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", objectKey, err)
	}
	return data, nil
}

// RemoveObject deletes the object; missing objects are not an error
func (c *Client) RemoveObject(ctx context.Context, objectKey string) error {
	err := c.mc.RemoveObject(ctx, c.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		c.logger.Error("object delete failed",
			zap.String("bucket", c.bucket),
			zap.String("key", objectKey),
			zap.Error(err),
		)
		return fmt.Errorf("failed to remove object %s: %w", objectKey, err)
	}
	return nil
}

// StatObject reports the object size, or an error when missing
func (c *Client) StatObject(ctx context.Context, objectKey string) (int64, error) {
	info, err := c.mc.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object %s: %w", objectKey, err)
	}
	return info.Size, nil
}
