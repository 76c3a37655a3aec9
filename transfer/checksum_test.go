package transfer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestChecksumWriterAndReaderAgree(t *testing.T) {
	data := []byte("hello world")

	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	if _, err := cw.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if cw.BytesWritten() != int64(len(data)) {
		t.Errorf("BytesWritten() = %d; want %d", cw.BytesWritten(), len(data))
	}

	cr := NewChecksumReader(bytes.NewReader(data))
	if _, err := io.Copy(io.Discard, cr); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if cr.BytesRead() != int64(len(data)) {
		t.Errorf("BytesRead() = %d; want %d", cr.BytesRead(), len(data))
	}

	if cw.Checksum() == 0 {
		t.Error("expected non-zero checksum")
	}
	if cw.Checksum() != cr.Checksum() {
		t.Errorf("writer checksum %d != reader checksum %d", cw.Checksum(), cr.Checksum())
	}
}

func TestFileChecksum(t *testing.T) {
	data := []byte("file checksum content")
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := FileChecksum(path, nil)
	if err != nil {
		t.Fatalf("FileChecksum failed: %v", err)
	}

	cw := NewChecksumWriter(io.Discard)
	cw.Write(data)
	if sum != cw.Checksum() {
		t.Errorf("FileChecksum = %d; want %d", sum, cw.Checksum())
	}
}

func TestFileChecksum_Missing(t *testing.T) {
	if _, err := FileChecksum(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}
