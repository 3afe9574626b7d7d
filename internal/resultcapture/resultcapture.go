// Package resultcapture implements the post-run output filter: it lists a
// job's working directory, identifies files produced no earlier than the
// uploaded program itself, filters them through the glob pattern list, and
// copies the survivors into local storage under results/<job.uuid>/.
package resultcapture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/backend"
	"github.com/runforge/runforge/internal/glob"
	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/rerrors"
	"github.com/runforge/runforge/internal/store"
)

// Manifest maps each captured file's remote filename to the Result id
// created for it.
type Manifest map[string]uuid.UUID

// Capture lists sess's current working directory, locates remoteFilename to
// establish the script's mtime baseline, and for every other entry whose
// mtime is not strictly less than that baseline and whose filename matches
// patterns, copies its bytes into mediaRoot/results/<jobUUID>/<filename> and
// records a Result row. Results are emitted in the order the directory
// listing yields them.
//
// A copy failure does not abort the capture: it is recorded and capture
// continues with the remaining entries, so the returned Manifest is always
// the set of files that did succeed; a non-nil *rerrors.IngestError
// accompanies it describing the last failure.
func Capture(ctx context.Context, sess backend.Session, jobID, jobUUID uuid.UUID, remoteFilename string, patterns []string, mediaRoot string, results store.ResultStore) (Manifest, error) {
	entries, err := sess.ListDirAttr(ctx)
	if err != nil {
		return nil, rerrors.NewIngestError("listing working directory", err)
	}

	var scriptMtime int64
	found := false
	for _, e := range entries {
		if e.Filename == remoteFilename {
			scriptMtime = e.MtimeSeconds
			found = true
			break
		}
	}
	if !found {
		return nil, rerrors.NewIngestError("program file not present in working directory", nil)
	}

	manifest := make(Manifest)
	var ingestErr error

	for _, e := range entries {
		if e.Filename == remoteFilename {
			continue
		}
		if e.MtimeSeconds < scriptMtime {
			continue
		}
		if !glob.IsMatching(e.Filename, patterns) {
			continue
		}

		localFile := fmt.Sprintf("results/%s/%s", jobUUID, e.Filename)
		if err := copyEntry(ctx, sess, e.Filename, mediaRoot, localFile); err != nil {
			ingestErr = rerrors.NewIngestError("copying "+e.Filename, err)
			continue
		}

		result := &model.Result{
			JobID:          jobID,
			RemoteFilename: e.Filename,
			LocalFile:      localFile,
		}
		if err := results.Create(ctx, result); err != nil {
			ingestErr = rerrors.NewIngestError("recording result for "+e.Filename, err)
			continue
		}
		manifest[e.Filename] = result.ID
	}

	return manifest, ingestErr
}

func copyEntry(ctx context.Context, sess backend.Session, filename, mediaRoot, localFile string) error {
	src, err := sess.Open(ctx, filename, backend.ReadOnly)
	if err != nil {
		return err
	}
	defer src.Close()

	destPath := filepath.Join(mediaRoot, filepath.FromSlash(localFile))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
