package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseTimeArg(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "12.5", want: 12.5},
		{raw: "1:05", want: 65},
		{raw: "1:00:30", want: 3630},
		{raw: "soon", wantErr: true},
		{raw: "-3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseTimeArg("start", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeArg(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseTimeArg(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := writeReport(dir, "update.csv", func(buf *bytes.Buffer) error {
		buf.WriteString("a,b\n")
		return nil
	})
	if err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "a,b\n" {
		t.Errorf("Unexpected report content %q", data)
	}

	boom := errors.New("boom")
	if _, err := writeReport(dir, "other.csv", func(*bytes.Buffer) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Expected render error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.csv")); !os.IsNotExist(err) {
		t.Error("Expected no file after a failed render")
	}
}
