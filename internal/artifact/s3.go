package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/phrazzld/atlas-api/internal/safepath"
)

// S3Options configures the object-storage backend. Endpoint may point at any
// S3-compatible service (MinIO, SeaweedFS); path-style addressing is the
// default because those deployments rarely support virtual-hosted buckets.
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	DisableTLS      bool
}

// S3Store keeps artifact blobs in an S3-compatible bucket. The index lives
// in process memory, so at-most-once delivery holds within a single node;
// blobs orphaned by a crash are cleaned up by a bucket lifecycle rule.
type S3Store struct {
	api    *s3.Client
	bucket string
	prefix string
	index  *memIndex
}

// NewS3Store builds the backend from opts.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Endpoint == "" && opts.Region == "" {
		return nil, errors.New("s3 backend requires an endpoint or a region")
	}
	if opts.Bucket == "" {
		return nil, errors.New("s3 backend requires a bucket")
	}
	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, errors.New("s3 backend requires static credentials")
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if opts.DisableTLS {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &S3Store{
		api:    api,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		index:  newMemIndex(),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, taskID, srcPath string, meta Meta) (*Ref, error) {
	if err := safepath.CheckFilename(meta.Filename); err != nil {
		return nil, err
	}
	if err := s.index.reserve(taskID); err != nil {
		return nil, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		s.index.cancel(taskID)
		return nil, fmt.Errorf("opening artifact source for task %s: %w", taskID, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		s.index.cancel(taskID)
		return nil, fmt.Errorf("sizing artifact source for task %s: %w", taskID, err)
	}
	size := info.Size()

	key := s.objectKey(taskID, meta.Filename)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(meta.ContentType),
	})
	if err != nil {
		s.index.cancel(taskID)
		return nil, fmt.Errorf("uploading artifact for task %s: %w", taskID, err)
	}
	_ = os.Remove(srcPath)

	ref := Ref{
		TaskID:      taskID,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		SizeBytes:   size,
		Location:    fmt.Sprintf("s3://%s/%s", s.bucket, key),
		StoredAt:    time.Now(),
	}
	s.index.commit(taskID, ref, key)
	return &ref, nil
}

func (s *S3Store) Take(ctx context.Context, taskID string) (*Handle, error) {
	e, ok := s.index.take(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, taskID)
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(e.key),
	})
	if err != nil {
		s.index.reinsert(taskID, e)
		return nil, fmt.Errorf("fetching artifact for task %s: %w", taskID, err)
	}
	return &Handle{Ref: e.ref, rc: &deleteOnClose{body: out.Body, store: s, key: e.key}}, nil
}

func (s *S3Store) Release(ctx context.Context, taskID string) error {
	e, ok := s.index.drop(taskID)
	if !ok {
		return nil
	}
	if err := s.deleteObject(ctx, e.key); err != nil {
		return fmt.Errorf("removing artifact for task %s: %w", taskID, err)
	}
	return nil
}

func (s *S3Store) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	victims := s.index.expire(olderThan)
	var errs []error
	for _, e := range victims {
		if err := s.deleteObject(ctx, e.key); err != nil {
			errs = append(errs, err)
		}
	}
	return len(victims), errors.Join(errs...)
}

func (s *S3Store) Len() int {
	return s.index.len()
}

func (s *S3Store) objectKey(taskID, filename string) string {
	if s.prefix == "" {
		return path.Join(taskID, filename)
	}
	return path.Join(s.prefix, taskID, filename)
}

func (s *S3Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// deleteOnClose removes the object once the caller finishes streaming it.
type deleteOnClose struct {
	body  io.ReadCloser
	store *S3Store
	key   string
}

func (d *deleteOnClose) Read(p []byte) (int, error) {
	return d.body.Read(p)
}

func (d *deleteOnClose) Close() error {
	closeErr := d.body.Close()
	deleteErr := d.store.deleteObject(context.Background(), d.key)
	return errors.Join(closeErr, deleteErr)
}
