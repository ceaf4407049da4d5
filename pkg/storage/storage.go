// Package storage opens inputs and creates outputs by URI.
// Supports: local paths, s3://bucket/key, and "-" for stdin/stdout.
// Names ending in .gz or .zst are decoded on read and encoded on write.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/storage/s3"
)

// Stdio is the URI that names stdin for inputs and stdout for outputs.
const Stdio = "-"

// Storage routes URIs to the local filesystem or S3. The S3 client is
// created on first use.
type Storage struct {
	s3cfg s3.Config

	once   sync.Once
	client *s3.Client
	err    error
}

// New creates a Storage that uses cfg for s3:// URIs.
func New(cfg s3.Config) *Storage {
	return &Storage{s3cfg: cfg}
}

var defaultStorage = New(s3.DefaultConfig())

// Open opens uri with the default S3 configuration.
func Open(ctx context.Context, uri string, opts ...OpenOption) (*Input, error) {
	return defaultStorage.Open(ctx, uri, opts...)
}

// Create creates uri with the default S3 configuration.
func Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	return defaultStorage.Create(ctx, uri)
}

// Input is an opened, decoded input stream.
type Input struct {
	io.Reader

	// Size is the stored (possibly compressed) size, or -1 when unknown.
	Size int64

	closers []io.Closer
}

// Close releases the decoder and the underlying stream.
func (in *Input) Close() error {
	var errs ferrors.MultiError
	for i := len(in.closers) - 1; i >= 0; i-- {
		errs.Add(in.closers[i].Close())
	}
	return errs.Combined()
}

type openOptions struct {
	progress func(size int64) io.Writer
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithProgress calls fn with the stored size once the input is open and
// copies every stored byte read into the returned writer, before decoding.
// A nil writer disables the copy.
func WithProgress(fn func(size int64) io.Writer) OpenOption {
	return func(o *openOptions) { o.progress = fn }
}

func (s *Storage) s3Client(ctx context.Context) (*s3.Client, error) {
	s.once.Do(func() {
		s.client, s.err = s3.NewClient(ctx, s.s3cfg)
	})
	return s.client, s.err
}

// Open opens uri for reading.
func (s *Storage) Open(ctx context.Context, uri string, opts ...OpenOption) (*Input, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	in := &Input{Size: -1}
	var raw io.Reader

	switch {
	case uri == Stdio:
		raw = os.Stdin
	case s3.IsURI(uri):
		bucket, key, err := s3.ParseURI(uri)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeInvalidFormat, "invalid s3 uri").WithContext("uri", uri)
		}
		client, err := s.s3Client(ctx)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeConfigInvalid, "s3 client")
		}
		body, size, err := client.Reader(ctx, bucket, key)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeReadFailed, "open object").WithContext("uri", uri)
		}
		raw, in.Size = body, size
		in.closers = append(in.closers, body)
	default:
		f, err := openLocal(uri)
		if err != nil {
			return nil, err
		}
		if info, err := f.Stat(); err == nil {
			in.Size = info.Size()
		}
		raw = f
		in.closers = append(in.closers, f)
	}

	if o.progress != nil {
		if w := o.progress(in.Size); w != nil {
			raw = io.TeeReader(raw, w)
		}
	}

	decoded, closer, err := decode(uri, raw)
	if err != nil {
		in.Close()
		return nil, ferrors.Wrap(err, ferrors.CodeInvalidFormat, "decompress input").WithContext("uri", uri)
	}
	if closer != nil {
		in.closers = append(in.closers, closer)
	}
	in.Reader = decoded
	return in, nil
}

func openLocal(path string) (*os.File, error) {
	f, err := os.Open(path)
	switch {
	case err == nil:
		return f, nil
	case os.IsNotExist(err):
		return nil, ferrors.FileNotFound(path)
	case os.IsPermission(err):
		return nil, ferrors.Wrap(err, ferrors.CodeFilePermission, "permission denied").WithContext("path", path)
	default:
		return nil, ferrors.Wrap(err, ferrors.CodeReadFailed, "open file").WithContext("path", path)
	}
}

func decode(name string, r io.Reader) (io.Reader, io.Closer, error) {
	switch Compression(name) {
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, gz, nil
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		rc := dec.IOReadCloser()
		return rc, rc, nil
	}
	return r, nil, nil
}

// Create opens uri for writing, creating parent directories for local
// paths. Closing the writer finishes any encoder and the underlying stream;
// stdout is never closed.
func (s *Storage) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	var (
		w           io.WriteCloser
		contentType = "application/x-ndjson"
	)

	switch {
	case uri == Stdio:
		w = nopWriteCloser{os.Stdout}
	case s3.IsURI(uri):
		bucket, key, err := s3.ParseURI(uri)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeInvalidFormat, "invalid s3 uri").WithContext("uri", uri)
		}
		client, err := s.s3Client(ctx)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeConfigInvalid, "s3 client")
		}
		if Compression(uri) != "" {
			contentType = "application/octet-stream"
		}
		w = client.Writer(ctx, bucket, key, contentType)
	default:
		if dir := filepath.Dir(uri); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, ferrors.Wrap(err, ferrors.CodeWriteFailed, "create directory").WithContext("path", dir)
			}
		}
		f, err := os.Create(uri)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeWriteFailed, "create file").WithContext("path", uri)
		}
		w = f
	}

	switch Compression(uri) {
	case ".gz":
		return &encodedWriter{WriteCloser: gzip.NewWriter(w), base: w}, nil
	case ".zst":
		enc, err := zstd.NewWriter(w)
		if err != nil {
			w.Close()
			return nil, ferrors.Wrap(err, ferrors.CodeCompressionFailed, "zstd encoder")
		}
		return &encodedWriter{WriteCloser: enc, base: w}, nil
	}
	return w, nil
}

type encodedWriter struct {
	io.WriteCloser
	base io.Closer
}

func (w *encodedWriter) Close() error {
	err := w.WriteCloser.Close()
	if cerr := w.base.Close(); err == nil {
		err = cerr
	}
	return err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// List expands pattern into input URIs. Local patterns use filepath.Glob;
// s3://bucket/prefix*suffix lists the keys under prefix that end in suffix.
func (s *Storage) List(ctx context.Context, pattern string) ([]string, error) {
	if !s3.IsURI(pattern) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.CodeInvalidFormat, "invalid pattern").WithContext("pattern", pattern)
		}
		sort.Strings(matches)
		return matches, nil
	}

	bucket, key, err := s3.ParseURI(pattern)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeInvalidFormat, "invalid s3 uri").WithContext("uri", pattern)
	}
	prefix, suffix := key, ""
	if i := strings.Index(key, "*"); i >= 0 {
		prefix, suffix = key[:i], key[i+1:]
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeConfigInvalid, "s3 client")
	}
	keys, err := client.List(ctx, bucket, prefix, suffix)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeReadFailed, "list objects").WithContext("uri", pattern)
	}

	uris := make([]string, len(keys))
	for i, k := range keys {
		uris[i] = fmt.Sprintf("s3://%s/%s", bucket, k)
	}
	sort.Strings(uris)
	return uris, nil
}

// Compression returns ".gz" or ".zst" when name carries that suffix.
func Compression(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".gz", ".zst"} {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// StripCompression removes a trailing .gz or .zst from name.
func StripCompression(name string) string {
	return name[:len(name)-len(Compression(name))]
}

// BaseFormat returns the lower-cased extension after stripping compression.
// e.g., "orders.edi.gz" -> ".edi"
func BaseFormat(name string) string {
	return strings.ToLower(filepath.Ext(StripCompression(name)))
}
