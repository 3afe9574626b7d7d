package logbuffer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/model"
)

type fakeLogStore struct {
	created [][]*model.Log
}

func (f *fakeLogStore) BulkCreate(ctx context.Context, logs []*model.Log) error {
	f.created = append(f.created, logs)
	return nil
}

func (f *fakeLogStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Log, error) {
	return nil, nil
}

func (f *fakeLogStore) allLogs() []*model.Log {
	var out []*model.Log
	for _, batch := range f.created {
		out = append(out, batch...)
	}
	return out
}

func TestBufferNonePolicyDiscardsEverything(t *testing.T) {
	fake := &fakeLogStore{}
	buf := New(uuid.New(), PolicyNone, fake, nil, nil)

	if err := buf.WriteStdout(context.Background(), time.Now(), "line\n"); err != nil {
		t.Fatalf("WriteStdout: %v", err)
	}
	if err := buf.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fake.allLogs()) != 0 {
		t.Fatalf("expected zero Log rows under NONE, got %d", len(fake.allLogs()))
	}
}

func TestBufferLivePolicyOneRowPerWrite(t *testing.T) {
	fake := &fakeLogStore{}
	buf := New(uuid.New(), PolicyLive, fake, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := buf.WriteStdout(ctx, time.Now(), "line\n"); err != nil {
			t.Fatalf("WriteStdout: %v", err)
		}
	}
	if err := buf.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	logs := fake.allLogs()
	if len(logs) != 5 {
		t.Fatalf("expected 5 Log rows under LIVE, got %d", len(logs))
	}
	for _, l := range logs {
		if l.Content != "line\n" {
			t.Errorf("content = %q, want %q", l.Content, "line\n")
		}
	}
}

func TestBufferTotalPolicyConcatenates(t *testing.T) {
	fake := &fakeLogStore{}
	buf := New(uuid.New(), PolicyTotal, fake, nil, nil)
	ctx := context.Background()

	want := ""
	base := time.Now()
	for i := 0; i < 5; i++ {
		text := "line: " + string(rune('0'+i)) + "\n"
		want += text
		if err := buf.WriteStdout(ctx, base.Add(time.Duration(i)*time.Millisecond), text); err != nil {
			t.Fatalf("WriteStdout: %v", err)
		}
	}
	if err := buf.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	logs := fake.allLogs()
	if len(logs) != 1 {
		t.Fatalf("expected exactly one Log row under TOTAL, got %d", len(logs))
	}
	if logs[0].Content != want {
		t.Errorf("content = %q, want %q", logs[0].Content, want)
	}
}

func TestBufferFlushIsIdempotentWhenEmpty(t *testing.T) {
	fake := &fakeLogStore{}
	buf := New(uuid.New(), PolicyTotal, fake, nil, nil)
	ctx := context.Background()

	if err := buf.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := buf.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fake.allLogs()) != 0 {
		t.Fatalf("expected no Log rows, got %d", len(fake.allLogs()))
	}
}

func TestBufferNeverCreatesEmptyContentLog(t *testing.T) {
	fake := &fakeLogStore{}
	buf := New(uuid.New(), PolicyTotal, fake, nil, nil)
	ctx := context.Background()

	// An empty write should not count as content.
	if err := buf.WriteStdout(ctx, time.Now(), ""); err != nil {
		t.Fatalf("WriteStdout: %v", err)
	}
	if err := buf.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(fake.allLogs()) != 0 {
		t.Fatalf("expected no Log rows for empty content, got %d", len(fake.allLogs()))
	}
}
