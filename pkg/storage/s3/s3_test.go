package s3

import (
	"io"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://edi-inbox/2024/orders.edi", "edi-inbox", "2024/orders.edi", false},
		{"s3://edi-inbox", "edi-inbox", "", false},
		{"/local/orders.edi", "", "", true},
		{"s3:///orders.edi", "", "", true},
	}

	for _, tt := range tests {
		bucket, key, err := ParseURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseURI(%s) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseURI(%s) = %s, %s, want %s, %s", tt.uri, bucket, key, tt.bucket, tt.key)
		}
	}
}

func TestIsURI(t *testing.T) {
	if !IsURI("s3://b/k") || IsURI("orders.edi") || IsURI("-") {
		t.Error("IsURI misclassified a path")
	}
}

func TestBytesReader(t *testing.T) {
	r := &bytesReader{data: []byte("UNB+UNOA:2'")}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "UNB+UNOA:2'" {
		t.Errorf("Expected payload back, got %q", got)
	}
}
