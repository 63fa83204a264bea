// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config configures S3Backend.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // for S3-compatible stores
	ForcePathStyle  bool
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
	HTTPClient      *http.Client
}

// S3Backend maps folders onto key prefixes. A folder exists when its marker
// object "<root>/<name>/" exists; folder ids are the prefix including the
// trailing slash.
type S3Backend struct {
	api      s3iface.S3API
	uploader *s3manager.Uploader
	bucket   string
}

// NewS3Backend opens a session for cfg.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 storage: bucket is required")
	}
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.HTTPClient != nil {
		awsCfg.HTTPClient = cfg.HTTPClient
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return NewS3BackendWithClient(s3.New(sess), cfg.Bucket), nil
}

// NewS3BackendWithClient uses an existing client.
func NewS3BackendWithClient(api s3iface.S3API, bucket string) *S3Backend {
	return &S3Backend{
		api:      api,
		uploader: s3manager.NewUploaderWithClient(api),
		bucket:   bucket,
	}
}

func (b *S3Backend) Name() string { return "s3" }

func folderPrefix(rootID, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid folder name %q", name)
	}
	root := strings.Trim(rootID, "/")
	if root == "" {
		return name + "/", nil
	}
	return path.Join(root, name) + "/", nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case "NotFound", s3.ErrCodeNoSuchKey:
		return true
	}
	return false
}

func (b *S3Backend) FindFolder(ctx context.Context, rootID, name string) (string, error) {
	prefix, err := folderPrefix(rootID, name)
	if err != nil {
		return "", err
	}
	_, err = b.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(prefix),
	})
	if isS3NotFound(err) {
		return "", ErrFolderNotFound
	}
	if err != nil {
		return "", err
	}
	return prefix, nil
}

func (b *S3Backend) CreateFolder(ctx context.Context, rootID, name string) (string, error) {
	prefix, err := folderPrefix(rootID, name)
	if err != nil {
		return "", err
	}
	_, err = b.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(prefix),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", err
	}
	return prefix, nil
}

func (b *S3Backend) UploadFile(ctx context.Context, folderID, localPath, remoteName string) error {
	if strings.Contains(remoteName, "/") {
		return fmt.Errorf("invalid remote name %q", remoteName)
	}
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	_, err = b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(folderID + remoteName),
		Body:        src,
		ContentType: aws.String("video/mp4"),
	})
	return err
}
