// Package media uploads user images to S3, normalizing them first.
package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
)

const (
	avatarSize    = 256
	maxImageWidth = 1280
	presignTTL    = 24 * time.Hour
)

// Uploader stores processed images in one S3 bucket.
type Uploader struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	region     string
	publicRead bool
}

func NewUploader(ctx context.Context, cfg config.S3Cfg) (*Uploader, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, apperr.Internal("aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Uploader{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicRead: cfg.PublicRead,
	}, nil
}

// UploadAvatar center-crops to a square, scales to 256px and stores the
// result as JPEG. Returns the object URL.
func (u *Uploader) UploadAvatar(ctx context.Context, userID string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", apperr.Validation("unsupported image format")
	}
	img = imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", apperr.Internal("encode avatar", err)
	}
	key := fmt.Sprintf("avatars/%s/%s.jpg", userID, uuid.NewString())
	return u.put(ctx, key, "image/jpeg", buf.Bytes())
}

// UploadMessageImage bounds the width at 1280px, preserving aspect ratio.
func (u *Uploader) UploadMessageImage(ctx context.Context, userID string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", apperr.Validation("unsupported image format")
	}
	if img.Bounds().Dx() > maxImageWidth {
		img = imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", apperr.Internal("encode image", err)
	}
	key := fmt.Sprintf("messages/%s/%s.jpg", userID, uuid.NewString())
	return u.put(ctx, key, "image/jpeg", buf.Bytes())
}

func (u *Uploader) put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", apperr.Internal("s3 upload", err)
	}
	if u.publicRead {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, url.PathEscape(key)), nil
	}
	return u.presign(ctx, key)
}

func (u *Uploader) presign(ctx context.Context, key string) (string, error) {
	p := s3.NewPresignClient(u.client)
	req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", apperr.Internal("s3 presign", err)
	}
	return req.URL, nil
}
