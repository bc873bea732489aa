package commitlog

import (
	"context"
	"path/filepath"
	"testing"

	sop "github.com/SharedCode/sop"
)

func TestFileCommitLogAppendFlushReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal")

	log, err := NewFileCommitLog(path)
	if err != nil {
		t.Fatalf("NewFileCommitLog: %v", err)
	}

	ctx := context.Background()
	type record struct {
		cid     sop.UUID
		payload []byte
	}
	records := []record{
		{cid: sop.NewUUID(), payload: []byte("first")},
		{cid: sop.NewUUID(), payload: []byte("second")},
		{cid: sop.NewUUID(), payload: []byte("third")},
	}

	for _, r := range records {
		handle, err := log.Append(ctx, r.cid, r.payload)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := log.Flush(ctx, handle); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewFileCommitLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var got []record
	read, applied, err := reopened.Replay(ctx, func(cid sop.UUID, payload []byte) error {
		got = append(got, record{cid: cid, payload: append([]byte(nil), payload...)})
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if read != len(records) || applied != len(records) {
		t.Fatalf("Replay read=%d applied=%d, want %d", read, applied, len(records))
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, r := range records {
		if got[i].cid != r.cid {
			t.Fatalf("record %d cid = %s, want %s", i, got[i].cid, r.cid)
		}
		if string(got[i].payload) != string(r.payload) {
			t.Fatalf("record %d payload = %q, want %q", i, got[i].payload, r.payload)
		}
	}
}
