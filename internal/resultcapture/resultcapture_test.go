package resultcapture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/backend"
	"github.com/runforge/runforge/internal/model"
)

type fakeResultStore struct {
	created []*model.Result
}

func (f *fakeResultStore) Create(ctx context.Context, r *model.Result) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.created = append(f.created, r)
	return nil
}

func (f *fakeResultStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Result, error) {
	return f.created, nil
}

func TestCaptureFiltersByMtimeAndGlob(t *testing.T) {
	workdir := t.TempDir()
	mediaRoot := t.TempDir()

	mustWrite(t, filepath.Join(workdir, "program.sh"), "echo hi")
	base := time.Now()
	if err := os.Chtimes(filepath.Join(workdir, "program.sh"), base, base); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	for i := 0; i < 5; i++ {
		name := filepath.Join(workdir, string(rune('0'+i))+".txt")
		mustWrite(t, name, "line: "+string(rune('0'+i))+"\n")
		mt := base.Add(time.Duration(i) * time.Second)
		if err := os.Chtimes(name, mt, mt); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	// An older file than the script must never be captured.
	older := filepath.Join(workdir, "stale.txt")
	mustWrite(t, older, "stale")
	staleTime := base.Add(-time.Hour)
	if err := os.Chtimes(older, staleTime, staleTime); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	ctx := context.Background()
	sess, err := backend.NewLocal().Connect(ctx, backend.ConnectOptions{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()
	if err := sess.Chdir(ctx, workdir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	results := &fakeResultStore{}
	jobID := uuid.New()
	jobUUID := uuid.New()

	manifest, err := Capture(ctx, sess, jobID, jobUUID, "program.sh", []string{"*", "![34].txt"}, mediaRoot, results)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	wantNames := map[string]bool{"0.txt": true, "1.txt": true, "2.txt": true}
	if len(manifest) != len(wantNames) {
		t.Fatalf("manifest = %v, want entries for %v", manifest, wantNames)
	}
	for name := range wantNames {
		if _, ok := manifest[name]; !ok {
			t.Errorf("missing expected result for %s", name)
		}
	}
	if _, ok := manifest["stale.txt"]; ok {
		t.Errorf("stale.txt should not have been captured (older than program mtime)")
	}
	if _, ok := manifest["3.txt"]; ok {
		t.Errorf("3.txt should have been excluded by negative pattern")
	}

	for _, r := range results.created {
		wantPath := "results/" + jobUUID.String() + "/" + r.RemoteFilename
		if r.LocalFile != wantPath {
			t.Errorf("LocalFile = %q, want %q", r.LocalFile, wantPath)
		}
		contents, err := os.ReadFile(filepath.Join(mediaRoot, r.LocalFile))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if len(contents) == 0 {
			t.Errorf("captured file %s is empty", r.RemoteFilename)
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
