package edifact

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

func TestTokenize(t *testing.T) {
	s := Tokenize("QTY+21:10:PCE'")

	if s.Tag != "QTY" {
		t.Errorf("Expected tag QTY, got %q", s.Tag)
	}
	want := [][]string{{"QTY"}, {"21", "10", "PCE"}}
	if !reflect.DeepEqual(s.Groups, want) {
		t.Errorf("Groups = %v, want %v", s.Groups, want)
	}
	if s.Raw != "QTY+21:10:PCE" {
		t.Errorf("Expected terminator trimmed, got %q", s.Raw)
	}
	if !reflect.DeepEqual(s.Elements(), []string{"21:10:PCE"}) {
		t.Errorf("Elements = %v", s.Elements())
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Segment
	}{
		{"UNB+UNOA:2+SENDER1:14+RECEIVER1:14+200101:1200+IC001'", UNB{Sender: "SENDER1", Receiver: "RECEIVER1", InterchangeID: "IC001"}},
		{"UNB+UNOA:2'", UNB{}},
		{"UNH+1+ORDERS:D:96A:UN'", UNH{}},
		{"BGM+220+PO123+9'", BGM{Code: "220", Number: "PO123"}},
		{"BGM'", BGM{}},
		{"DTM+137:20240101:102'", DTM{Qualifier: "137", Value: "20240101"}},
		{"DTM+2'", DTM{Qualifier: "2"}},
		{"NAD+BY+5412345000013::9'", NAD{Qualifier: "BY", Party: "5412345000013"}},
		{"NAD+SU'", NAD{Qualifier: "SU"}},
		{"LIN+1++4000862141404:SRS'", LIN{LineNo: "1", SKU: "4000862141404"}},
		{"LIN+2'", LIN{LineNo: "2"}},
		{"QTY+21:48:PCE'", QTY{Qualifier: "21", Quantity: "48", Unit: "PCE"}},
		{"QTY+21:48'", QTY{Qualifier: "21", Quantity: "48"}},
		{"MOA+203:480.50'", MOA{Qualifier: "203", Amount: "480.50"}},
		{"CNT+2:3'", CNT{Qualifier: "2", Value: "3"}},
		{"CUX+2:EUR:9'", CUX{Currency: "EUR"}},
		{"CUX'", CUX{}},
		{"UNT+12+1'", UNT{}},
		{"UNZ+1+IC001'", UNZ{}},
		{"FTX+AAI+++note'", Unknown{Tag: "FTX"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParse_MissingElements(t *testing.T) {
	lines := []string{
		"DTM'",
		"NAD'",
		"QTY'",
		"QTY+21'",
		"MOA+203'",
		"CNT'",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			if err == nil {
				t.Fatal("Expected structural error")
			}
			if !errors.Is(err, ErrMissingElement) {
				t.Errorf("Expected ErrMissingElement, got %v", err)
			}
			if !ferrors.IsCode(err, ferrors.CodeSegmentStructure) {
				t.Errorf("Expected code %s, got %s", ferrors.CodeSegmentStructure, ferrors.GetCode(err))
			}
		})
	}
}

func TestScanner(t *testing.T) {
	input := "UNB+UNOA:2+S+R+D+IC1'\n\n  UNH+1'BGM+220+PO1'\r\nUNT+3+1'\n"
	s := NewScanner(strings.NewReader(input))

	var got []string
	var lines []int
	for s.Scan() {
		got = append(got, s.Text())
		lines = append(lines, s.Line())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Scanner failed: %v", err)
	}

	want := []string{"UNB+UNOA:2+S+R+D+IC1", "UNH+1", "BGM+220+PO1", "UNT+3+1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segments = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(lines, []int{1, 3, 3, 4}) {
		t.Errorf("Lines = %v", lines)
	}
	if s.Count() != 4 {
		t.Errorf("Expected 4 segments, got %d", s.Count())
	}
}

func TestTokenize_Release(t *testing.T) {
	tests := []struct {
		line   string
		groups [][]string
	}{
		{"NAD+BY+O?'BRIEN::9'", [][]string{{"NAD"}, {"BY"}, {"O'BRIEN", "", "9"}}},
		{"FTX+AAI+++A?+B?:C'", [][]string{{"FTX"}, {"AAI"}, {""}, {""}, {"A+B:C"}}},
		{"FTX+AAI+50??'", [][]string{{"FTX"}, {"AAI"}, {"50?"}}},
		{"FTX+AAI+IT?'", [][]string{{"FTX"}, {"AAI"}, {"IT'"}}},
	}
	for _, tt := range tests {
		s := Tokenize(tt.line)
		if !reflect.DeepEqual(s.Groups, tt.groups) {
			t.Errorf("Tokenize(%q).Groups = %q, want %q", tt.line, s.Groups, tt.groups)
		}
	}
}

func TestScanner_ReleasedTerminator(t *testing.T) {
	input := "NAD+BY+O?'BRIEN::9'\nNAD+SU+A??'LIN+1++SKU-A'\n"
	s := NewScanner(strings.NewReader(input))

	var got []string
	for s.Scan() {
		got = append(got, s.Text())
	}
	want := []string{"NAD+BY+O?'BRIEN::9", "NAD+SU+A??", "LIN+1++SKU-A"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments = %q, want %q", got, want)
	}

	seg, err := Parse(got[0])
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if nad, ok := seg.(NAD); !ok || nad.Party != "O'BRIEN" {
		t.Errorf("Expected buyer O'BRIEN, got %#v", seg)
	}
}

func TestScanner_ServiceStringAdvice(t *testing.T) {
	s := NewScanner(strings.NewReader("UNA:+.? 'UNB+UNOA:2+S+R+D+IC1'\n"))

	var got []string
	for s.Scan() {
		got = append(got, s.Text())
	}
	want := []string{"UNA:+.? ", "UNB+UNOA:2+S+R+D+IC1"}
	if len(got) != 2 || got[1] != want[1] || !strings.HasPrefix(got[0], "UNA") {
		t.Errorf("Segments = %q, want %q", got, want)
	}
}
