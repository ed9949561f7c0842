// Package imagehost uploads images to Cloudinary using an unsigned upload
// preset.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.cloudinary.com"

type Asset struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Uploader is the external image host.
type Uploader interface {
	Upload(ctx context.Context, f File) (Asset, error)
}

type Config struct {
	BaseURL      string
	CloudName    string
	UploadPreset string
	Timeout      time.Duration
}

// UploadError is a non-2xx answer from the host.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("image upload failed (%d): %s", e.Status, e.Message)
}

type Cloudinary struct {
	cfg    Config
	client *http.Client
	log    *zerolog.Logger
}

func NewCloudinary(cfg Config, log *zerolog.Logger) *Cloudinary {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Cloudinary{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (c *Cloudinary) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/v1_1/" + c.cfg.CloudName + "/image/upload"
}

func (c *Cloudinary) Upload(ctx context.Context, f File) (Asset, error) {
	if f.Body == nil {
		return Asset{}, ErrNoFile
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	header.Set("Content-Type", f.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return Asset{}, fmt.Errorf("create file part: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(f.Body, MaxSize+1))
	if err != nil {
		return Asset{}, fmt.Errorf("read upload: %w", err)
	}
	if n > MaxSize {
		return Asset{}, ErrTooLarge
	}
	if err := mw.WriteField("upload_preset", c.cfg.UploadPreset); err != nil {
		return Asset{}, err
	}
	if err := mw.WriteField("cloud_name", c.cfg.CloudName); err != nil {
		return Asset{}, err
	}
	if err := mw.Close(); err != nil {
		return Asset{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), &body)
	if err != nil {
		return Asset{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := "Failed to upload image"
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error.Message != "" {
			msg = errBody.Error.Message
		}
		return Asset{}, &UploadError{Status: resp.StatusCode, Message: msg}
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return Asset{}, fmt.Errorf("decode upload response: %w", err)
	}
	c.log.Info().Str("public_id", asset.PublicID).Int64("bytes", n).Msg("image uploaded")
	return asset, nil
}
