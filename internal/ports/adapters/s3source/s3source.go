// Package s3source fetches source media from S3-compatible object storage
// (AWS S3, DigitalOcean Spaces, MinIO) for s3://bucket/key locators.
package s3source

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

type Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
}

type getter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Client struct {
	s3 getter
}

// New builds a client from static credentials when given, otherwise from the
// default AWS credential chain. A custom endpoint switches to path-style
// addressing, which most S3-compatible stores need.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{s3: client}, nil
}

// ParseLocator splits s3://bucket/key.
func ParseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", errors.Wrap(err, "parse s3 locator")
	}
	if u.Scheme != "s3" {
		return "", "", errors.Errorf("not an s3 locator: %q", locator)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", errors.Errorf("s3 locator needs bucket and object key: %q", locator)
	}
	return bucket, key, nil
}

// Acquire downloads the object into destDir, keeping the key's base name.
func (c *Client) Acquire(ctx context.Context, locator, destDir string) (string, error) {
	bucket, key, err := ParseLocator(locator)
	if err != nil {
		return "", err
	}
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", errors.Wrapf(err, "get s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create download dir")
	}
	dst := filepath.Join(destDir, path.Base(key))
	tmp := dst + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", errors.Wrapf(err, "download s3://%s/%s", bucket, key)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", errors.WithStack(err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", errors.WithStack(err)
	}
	return dst, nil
}
