// Package s3 reads interchange inputs from and writes outputs to S3 or an
// S3-compatible service.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// minPartSize is the smallest part S3 accepts for a multipart upload.
const minPartSize = 5 * 1024 * 1024

// Config holds S3 client configuration.
type Config struct {
	Region string

	// Endpoint overrides the default S3 endpoint (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool

	// Static credentials; the default chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string

	PartSize        int64
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration
}

// DefaultConfig returns a Config with 5MB parts.
func DefaultConfig() Config {
	return Config{
		PartSize:        minPartSize,
		DownloadTimeout: 10 * time.Minute,
		UploadTimeout:   5 * time.Minute,
	}
}

// Client wraps the SDK client.
type Client struct {
	cfg    Config
	client *s3.Client
}

// NewClient loads AWS configuration and creates a client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.PartSize < minPartSize {
		cfg.PartSize = minPartSize
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 10 * time.Minute
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 5 * time.Minute
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Client{cfg: cfg, client: client}, nil
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// IsURI reports whether path names an S3 object.
func IsURI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// Reader opens an object for reading and returns its size.
func (c *Client) Reader(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)

	output, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}

	return &cancelOnCloseReader{ReadCloser: output.Body, cancel: cancel}, aws.ToInt64(output.ContentLength), nil
}

type cancelOnCloseReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelOnCloseReader) Close() error {
	r.cancel()
	return r.ReadCloser.Close()
}

// List returns the keys under prefix whose names end with suffix.
func (c *Client) List(ctx context.Context, bucket, prefix, suffix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, suffix) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// Writer returns a writer that uploads to bucket/key. Data is sent as one
// PUT when it fits in a single part, otherwise as a multipart upload.
func (c *Client) Writer(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
	return &writer{
		ctx:         ctx,
		client:      c.client,
		bucket:      bucket,
		key:         key,
		contentType: contentType,
		partSize:    c.cfg.PartSize,
		timeout:     c.cfg.UploadTimeout,
		buf:         make([]byte, 0, c.cfg.PartSize),
	}
}

type writer struct {
	ctx         context.Context
	client      *s3.Client
	bucket      string
	key         string
	contentType string
	partSize    int64
	timeout     time.Duration

	mu       sync.Mutex
	buf      []byte
	parts    []types.CompletedPart
	uploadID string
	partNum  int32
	closed   bool
	err      error
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("writer is closed")
	}
	if w.err != nil {
		return 0, w.err
	}

	w.buf = append(w.buf, p...)
	for int64(len(w.buf)) >= w.partSize {
		if err := w.uploadPart(w.buf[:w.partSize]); err != nil {
			w.err = err
			return len(p), err
		}
		w.buf = w.buf[w.partSize:]
	}
	return len(p), nil
}

// uploadPart sends one part, starting the multipart upload on first use.
// Caller holds mu.
func (w *writer) uploadPart(data []byte) error {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	if w.uploadID == "" {
		output, err := w.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket:      aws.String(w.bucket),
			Key:         aws.String(w.key),
			ContentType: aws.String(w.contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to create multipart upload: %w", err)
		}
		w.uploadID = aws.ToString(output.UploadId)
	}

	w.partNum++
	output, err := w.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(w.partNum),
		Body:       &bytesReader{data: data},
	})
	if err != nil {
		return fmt.Errorf("failed to upload part %d: %w", w.partNum, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       output.ETag,
		PartNumber: aws.Int32(w.partNum),
	})
	return nil
}

func (w *writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		w.abort()
		return w.err
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	if w.uploadID == "" {
		_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(w.bucket),
			Key:         aws.String(w.key),
			Body:        &bytesReader{data: w.buf},
			ContentType: aws.String(w.contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to put object %s/%s: %w", w.bucket, w.key, err)
		}
		return nil
	}

	if len(w.buf) > 0 {
		if err := w.uploadPart(w.buf); err != nil {
			w.abort()
			return err
		}
	}

	_, err := w.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(w.bucket),
		Key:             aws.String(w.key),
		UploadId:        aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: w.parts},
	})
	if err != nil {
		return fmt.Errorf("failed to complete upload: %w", err)
	}
	return nil
}

// abort discards uploaded parts. Caller holds mu.
func (w *writer) abort() {
	if w.uploadID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	w.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
}

// bytesReader reads a byte slice without copying it.
type bytesReader struct {
	data []byte
	pos  int
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
