package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

// S3ClientConfig holds configuration for S3-compatible storage
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Key             string
	UsePathStyle    bool
}

// ObjectAPI is the subset of the S3 client used by S3Repository.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Repository keeps the whole index as one JSON snapshot object. Appends
// rewrite the object; callers serialize writes.
type S3Repository struct {
	client ObjectAPI
	bucket string
	key    string
}

// NewS3Client creates an S3 client for AWS or an S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*s3.Client, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Repository creates a repository storing its snapshot at bucket/key.
func NewS3Repository(client ObjectAPI, bucket, key string) *S3Repository {
	return &S3Repository{client: client, bucket: bucket, key: key}
}

// EnsureBucket creates the bucket if it doesn't exist
func (r *S3Repository) EnsureBucket(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = r.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(r.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Load implements knowledge.Repository.
func (r *S3Repository) Load(ctx context.Context) (*knowledge.Manifest, []domain.KnowledgeChunk, error) {
	snap, err := r.read(ctx)
	if err != nil || snap == nil {
		return nil, nil, err
	}
	chunks := make([]domain.KnowledgeChunk, 0, len(snap.Chunks))
	for _, rec := range snap.Chunks {
		chunks = append(chunks, rec.toChunk())
	}
	return &snap.Manifest, chunks, nil
}

// Replace implements knowledge.Repository with a single object write.
func (r *S3Repository) Replace(ctx context.Context, manifest knowledge.Manifest, chunks []domain.KnowledgeChunk) error {
	snap := &snapshot{Manifest: manifest, Chunks: make([]chunkRecord, 0, len(chunks))}
	for _, c := range chunks {
		snap.Chunks = append(snap.Chunks, toRecord(c))
	}
	return r.write(ctx, snap)
}

// Append implements knowledge.Repository.
func (r *S3Repository) Append(ctx context.Context, chunks ...domain.KnowledgeChunk) error {
	snap, err := r.read(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("append to s3://%s/%s: index has not been built", r.bucket, r.key)
	}
	for _, c := range chunks {
		snap.Chunks = append(snap.Chunks, toRecord(c))
	}
	return r.write(ctx, snap)
}

func (r *S3Repository) read(ctx context.Context) (*snapshot, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get index object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read index object: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode index object: %w", err)
	}
	return &snap, nil
}

func (r *S3Repository) write(ctx context.Context, snap *snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode index object: %w", err)
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put index object: %w", err)
	}
	return nil
}
