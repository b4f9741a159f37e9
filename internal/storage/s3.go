package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var ErrNotConfigured = errors.New("storage: object storage not configured")

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type S3Config struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PublicURL string `yaml:"public_url"`
}

// Enabled reports whether enough settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// S3Uploader writes public objects to an S3-compatible bucket.
type S3Uploader struct {
	client    s3iface.S3API
	bucket    string
	publicURL string
}

func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return newS3Uploader(s3.New(sess), cfg), nil
}

func newS3Uploader(client s3iface.S3API, cfg S3Config) *S3Uploader {
	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		endpoint := strings.TrimRight(cfg.Endpoint, "/")
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
		}
		public = endpoint + "/" + cfg.Bucket
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket, publicURL: public}
}

func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	_, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload file to S3: %w", err)
	}
	return u.publicURL + "/" + key, nil
}
