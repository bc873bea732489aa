package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestCompressRecordsRoundTrip(t *testing.T) {
	records := []Record{
		{Cid: "cid-1", Payload: []byte("hello")},
		{Cid: "cid-2", Payload: []byte("world, with spaces")},
	}

	compressed, err := compressRecords(records)
	if err != nil {
		t.Fatalf("compressRecords: %v", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer gr.Close()

	decoded, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("read decompressed: %v", err)
	}

	want := "cid-1 5\nhello\ncid-2 18\nworld, with spaces\n"
	if string(decoded) != want {
		t.Fatalf("decoded = %q, want %q", string(decoded), want)
	}
}

func TestCompressRecordsEmpty(t *testing.T) {
	compressed, err := compressRecords(nil)
	if err != nil {
		t.Fatalf("compressRecords: %v", err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer gr.Close()
	decoded, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("read decompressed: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty payload, got %q", decoded)
	}
}
