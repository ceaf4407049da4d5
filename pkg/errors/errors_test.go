package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeReadFailed, "read input").WithContext("path", "orders.edi")

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
	if !IsCode(err, CodeReadFailed) {
		t.Errorf("Expected %s, got %s", CodeReadFailed, GetCode(err))
	}
	msg := err.Error()
	for _, want := range []string{"[E104]", "read input", "path=orders.edi", "unexpected EOF"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}
	if len(err.StackTrace) == 0 {
		t.Error("Expected a captured stack")
	}

	if Wrap(nil, CodeReadFailed, "noop") != nil {
		t.Error("Expected Wrap(nil) to be nil")
	}
}

func TestCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("job a.edi: %w", SegmentStructure("BGM", 1, 0, io.EOF))

	if !IsCode(err, CodeSegmentStructure) {
		t.Errorf("Expected code through fmt wrapping, got %s", GetCode(err))
	}
	if !errors.Is(err, &FileReduceError{Code: CodeSegmentStructure}) {
		t.Error("Expected errors.Is to match on code")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		err         error
		parse, isIO bool
	}{
		{QuerySyntax("unexpected token", 3), true, false},
		{New(CodeUnsupportedOperator, "!="), true, false},
		{FileNotFound("x"), false, true},
		{SinkFailed("postgres", io.EOF), false, true},
		{Canceled("process"), false, false},
		{io.EOF, false, false},
	}
	for _, tt := range tests {
		if got := IsParse(tt.err); got != tt.parse {
			t.Errorf("IsParse(%v) = %v, want %v", tt.err, got, tt.parse)
		}
		if got := IsIO(tt.err); got != tt.isIO {
			t.Errorf("IsIO(%v) = %v, want %v", tt.err, got, tt.isIO)
		}
	}
	if GetCode(io.EOF) != CodeUnknown {
		t.Errorf("Expected %s for plain errors", CodeUnknown)
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	m.Add(nil)
	if m.HasErrors() || m.Combined() != nil {
		t.Fatal("Expected nil errors to be ignored")
	}

	first := FileNotFound("a.edi")
	m.Add(first)
	if m.Combined() != first {
		t.Error("Expected the single error back")
	}

	m.Add(io.EOF)
	combined := m.Combined()
	if combined != &m {
		t.Fatalf("Expected the MultiError, got %T", combined)
	}
	if !strings.HasPrefix(combined.Error(), "2 errors occurred") {
		t.Errorf("Unexpected message %q", combined.Error())
	}
}
