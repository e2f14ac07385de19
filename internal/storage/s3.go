// Package storage provides read-side S3 access for sparkify-etl: counting
// source objects under the configured prefixes and uploading seed data.
// The warehouse itself reads S3 directly during COPY; this client never
// touches row data on the load path.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// API is the subset of the S3 client the storage package uses. It exists so
// tests can substitute a fake.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client wraps the S3 API with s3:// URI handling.
type Client struct {
	api    API
	region string
}

// New creates a Client using the default AWS credential chain.
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return &Client{api: s3.NewFromConfig(cfg), region: region}, nil
}

// NewWithAPI creates a Client over an existing API implementation.
func NewWithAPI(api API, region string) *Client {
	return &Client{api: api, region: region}
}

// ParseURI splits an s3://bucket/key URI into bucket and key. The key may
// be empty (bucket root).
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3:// URI: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in URI: %q", uri)
	}
	return bucket, key, nil
}

// CountObjects returns the number of objects under the prefix named by the
// URI, excluding zero-byte directory placeholders.
func (c *Client) CountObjects(ctx context.Context, uri string) (int64, error) {
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return 0, err
	}

	var count int64
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list %s: %w", uri, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			count++
		}
	}
	return count, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var apiErr smithy.APIError
	if !errors.As(err, &notFound) &&
		!(errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound") {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 is the API default and rejects an explicit constraint.
	if c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}
	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload writes body to the object named by the URI.
func (c *Client) Upload(ctx context.Context, uri string, body []byte) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("missing object key in URI: %q", uri)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", uri, err)
	}
	return nil
}

// JoinURI appends path elements to an s3:// prefix.
func JoinURI(prefix string, elems ...string) string {
	parts := append([]string{strings.TrimSuffix(prefix, "/")}, elems...)
	return strings.Join(parts, "/")
}
