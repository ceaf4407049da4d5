// Package compress compresses finished output files in place.
package compress

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// Codec is an output compression codec.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecGzip
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecGzip:
		return "gzip"
	default:
		return "none"
	}
}

// Extension returns the suffix File appends, or "" for CodecNone.
func (c Codec) Extension() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecGzip:
		return ".gz"
	default:
		return ""
	}
}

// ParseCodec parses a codec name.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CodecNone, nil
	case "zstd", "zst":
		return CodecZstd, nil
	case "gzip", "gz":
		return CodecGzip, nil
	}
	return CodecNone, ferrors.New(ferrors.CodeConfigInvalid, "unknown compression codec").WithContext("codec", s)
}

// File compresses path into path plus the codec extension, removes path and
// returns the new name. CodecNone returns path untouched.
func File(path string, codec Codec) (string, error) {
	if codec == CodecNone {
		return path, nil
	}
	target := path + codec.Extension()

	if err := compressFile(path, target, codec); err != nil {
		os.Remove(target)
		return "", ferrors.Wrapf(err, ferrors.CodeCompressionFailed, "%s compress output", codec).
			WithContext("path", path)
	}
	if err := os.Remove(path); err != nil {
		return "", ferrors.Wrap(err, ferrors.CodeWriteFailed, "remove uncompressed output").WithContext("path", path)
	}
	return target, nil
}

func compressFile(src, dst string, codec Codec) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := bufio.NewWriterSize(out, 256*1024)
	enc, err := NewWriter(buf, codec)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	return out.Close()
}

// NewWriter wraps w in an encoder for codec. Closing the encoder does not
// close w.
func NewWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecZstd:
		return zstd.NewWriter(w)
	case CodecGzip:
		return gzip.NewWriter(w), nil
	}
	return nopCloser{w}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
