// Package s3 stores content segments in an S3 compatible object store such as
// MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/drblury/actionflow/internal/runtime/content"
	"github.com/drblury/actionflow/internal/runtime/ids"
)

// ObjectAPI is the subset of the S3 client the storage needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Config holds the object store coordinates.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint for MinIO or LocalStack
	AccessKey string
	SecretKey string
}

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// Storage implements content.Storage on S3.
type Storage struct {
	client ObjectAPI
	bucket string
}

var _ content.Storage = (*Storage)(nil)

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket), nil
}

// NewWithClient wraps an existing client. An empty bucket selects
// content.DefaultBucket.
func NewWithClient(client ObjectAPI, bucket string) *Storage {
	if bucket == "" {
		bucket = content.DefaultBucket
	}
	return &Storage{client: client, bucket: bucket}
}

func (s *Storage) Put(ctx context.Context, did string, data []byte) (content.Segment, error) {
	seg := content.Segment{UUID: ids.NewSegmentID(), Size: int64(len(data)), Did: did}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(seg.ObjectName()),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(seg.Size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return content.Segment{}, fmt.Errorf("s3: put %s: %w", seg.ObjectName(), err)
	}
	return seg, nil
}

func (s *Storage) Get(ctx context.Context, seg content.Segment) ([]byte, error) {
	if seg.Size == 0 {
		return []byte{}, nil
	}
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(seg.ObjectName()),
		Range:  aws.String(byteRange(seg)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &content.MissingContentError{Segment: seg}
		}
		return nil, fmt.Errorf("s3: get %s: %w", seg.ObjectName(), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", seg.ObjectName(), err)
	}
	if int64(len(data)) != seg.Size {
		return nil, &content.MissingContentError{Segment: seg}
	}
	return data, nil
}

func byteRange(seg content.Segment) string {
	return fmt.Sprintf("bytes=%d-%d", seg.Offset, seg.Offset+seg.Size-1)
}
