package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// FileSink writes one JSON value per line.
type FileSink struct {
	w       *bufio.Writer
	closer  io.Closer
	written int64
}

// NewFileSink creates a sink writing to w. If w is an io.Closer it is closed
// by Close.
func NewFileSink(w io.Writer) *FileSink {
	s := &FileSink{w: bufio.NewWriterSize(w, 256*1024)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Send writes the item followed by a newline.
func (s *FileSink) Send(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "encode item")
	}
	if _, err := s.w.Write(data); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "write item")
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "write item")
	}
	s.written++
	return nil
}

// Flush writes buffered output.
func (s *FileSink) Flush(ctx context.Context) error {
	if err := s.w.Flush(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "flush output")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "flush output")
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Written returns the number of items written.
func (s *FileSink) Written() int64 {
	return s.written
}
