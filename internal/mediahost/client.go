// Package mediahost uploads patient media to a Cloudinary-compatible
// unsigned upload endpoint.
package mediahost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/config"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured  = errors.New("media host is not configured")
	ErrUploadRejected = errors.New("media host rejected the upload")
)

// File is one upload request. Folder groups a record's files at the host.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Folder      string
}

type uploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

type uploadError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	httpClient *resty.Client
	cloudName  string
	preset     string
	logger     *zap.Logger
}

func NewClient(cfg config.MediaConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		cloudName:  cfg.CloudName,
		preset:     cfg.UploadPreset,
		logger:     logger,
	}
}

// Upload sends one file. It never retries; the caller decides what a
// failure means for the record.
func (c *Client) Upload(ctx context.Context, f File) (media.Attachment, error) {
	if c.cloudName == "" {
		return media.Attachment{}, ErrNotConfigured
	}

	kind := media.KindOf(f.ContentType)
	start := time.Now()

	var (
		result  uploadResult
		failure uploadError
	)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"cloud": c.cloudName,
			"kind":  string(kind),
		}).
		SetFileReader("file", f.Name, bytes.NewReader(f.Data)).
		SetFormData(map[string]string{
			"upload_preset": c.preset,
			"folder":        f.Folder,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/v1_1/{cloud}/{kind}/upload")

	if err != nil {
		c.logger.Error("media upload failed",
			zap.String("file", f.Name),
			zap.Error(err),
		)
		return media.Attachment{}, fmt.Errorf("uploading %s: %w", f.Name, err)
	}

	if resp.IsError() || result.SecureURL == "" {
		msg := failure.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		c.logger.Warn("media host rejected upload",
			zap.String("file", f.Name),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", msg),
		)
		return media.Attachment{}, fmt.Errorf("%w: %s", ErrUploadRejected, msg)
	}

	c.logger.Debug("media uploaded",
		zap.String("file", f.Name),
		zap.String("public_id", result.PublicID),
		zap.Duration("duration", time.Since(start)),
	)

	return media.Attachment{URL: result.SecureURL, PublicID: result.PublicID, Kind: kind}, nil
}
