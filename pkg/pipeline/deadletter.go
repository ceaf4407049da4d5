package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// DeadLetter records a job that failed, so it can be inspected and rerun.
type DeadLetter struct {
	RunID        string            `json:"run_id"`
	Input        string            `json:"input"`
	Output       string            `json:"output,omitempty"`
	ErrorCode    string            `json:"error_code"`
	ErrorMessage string            `json:"error_message"`
	Context      map[string]string `json:"context,omitempty"`
	Documents    int64             `json:"documents"`
	Timestamp    time.Time         `json:"timestamp"`
}

// DeadLetterWriter appends DeadLetters to a JSONL file.
type DeadLetterWriter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	count   int64
	closed  bool
}

// NewDeadLetterWriter opens path for appending, creating its directory.
func NewDeadLetterWriter(path string) (*DeadLetterWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeWriteFailed, "create dead letter directory").WithContext("path", path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.CodeWriteFailed, "open dead letter file").WithContext("path", path)
	}
	return &DeadLetterWriter{file: file, encoder: json.NewEncoder(file)}, nil
}

// Write records a failed result. Results without an error are ignored.
func (w *DeadLetterWriter) Write(res *Result) error {
	if res == nil || res.Err == nil {
		return nil
	}

	letter := DeadLetter{
		RunID:        res.RunID,
		Input:        res.Input,
		Output:       res.Output,
		ErrorCode:    string(ferrors.GetCode(res.Err)),
		ErrorMessage: res.Err.Error(),
		Documents:    res.Stats.Documents,
		Timestamp:    time.Now(),
	}
	var fe *ferrors.FileReduceError
	if errors.As(res.Err, &fe) && len(fe.Context) > 0 {
		letter.Context = make(map[string]string, len(fe.Context))
		for k, v := range fe.Context {
			letter.Context[k] = toString(v)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ferrors.New(ferrors.CodeWriteFailed, "dead letter writer is closed")
	}
	if err := w.encoder.Encode(letter); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "write dead letter")
	}
	w.count++
	return nil
}

// Count returns the number of letters written.
func (w *DeadLetterWriter) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the file.
func (w *DeadLetterWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
