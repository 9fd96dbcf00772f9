// Package storage provides the blob store collaborator backing generated
// artifacts. It wraps the AWS SDK v2 S3 client with path-style access so
// it works against S3-compatible object stores.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// BlobStore uploads artifact bytes and returns a public URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Config holds the object store connection settings
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

// Client wraps an S3 client for artifact uploads.
type Client struct {
	s3        *s3.Client
	bucket    string
	endpoint  string
	publicURL string
}

var _ BlobStore = (*Client)(nil)

// New creates an S3 blob store client with static credentials and
// path-style addressing.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("blob store requires endpoint and credentials")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        s3Client,
		bucket:    cfg.Bucket,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Upload stores artifact bytes under key with public-read ACL and
// returns the URL the asset will be served from.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "BlobStore.Upload")
	defer span.End()

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}

	return c.FileURL(key), nil
}

// FileURL returns the public URL for an uploaded key. Uses the
// configured public URL if set, otherwise builds a path-style URL.
func (c *Client) FileURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, key)
}
