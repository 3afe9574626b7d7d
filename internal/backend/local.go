package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/runforge/runforge/internal/rerrors"
)

// localBackend spawns a local child process in place of a remote session.
// connect/close/key-deploy/key-delete are no-ops: there is no remote host to
// authenticate against or deploy a key onto.
type localBackend struct{}

// NewLocal returns a Backend that runs commands as local child processes.
func NewLocal() Backend {
	return &localBackend{}
}

func (b *localBackend) Connect(ctx context.Context, opts ConnectOptions) (Session, error) {
	return &localSession{}, nil
}

type localSession struct {
	cwd string
}

func (s *localSession) Close() error { return nil }

// Chdir composes dir against the session's own working-directory field; it
// never touches process-wide state.
func (s *localSession) Chdir(ctx context.Context, dir string) error {
	if filepath.IsAbs(dir) {
		s.cwd = dir
	} else {
		s.cwd = filepath.Join(s.cwd, dir)
	}
	return nil
}

// Open ensures the current working directory exists, creating any missing
// parents, before opening filename within it.
func (s *localSession) Open(ctx context.Context, filename string, mode OpenMode) (File, error) {
	if s.cwd != "" {
		if err := os.MkdirAll(s.cwd, 0o755); err != nil {
			return nil, rerrors.NewUploadError("creating local working directory", err)
		}
	}
	full := filepath.Join(s.cwd, filename)
	switch mode {
	case WriteOnly:
		f, err := os.Create(full)
		if err != nil {
			return nil, rerrors.NewUploadError("opening local file for write", err)
		}
		return f, nil
	default:
		f, err := os.Open(full)
		if err != nil {
			return nil, rerrors.NewTransportError("opening local file for read", err)
		}
		return f, nil
	}
}

func (s *localSession) ListDirAttr(ctx context.Context) ([]FileAttr, error) {
	entries, err := os.ReadDir(s.cwd)
	if err != nil {
		return nil, rerrors.NewTransportError("listing local directory", err)
	}
	out := make([]FileAttr, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileAttr{Filename: e.Name(), MtimeSeconds: info.ModTime().Unix()})
	}
	return out, nil
}

// ExecCommand spawns argv unchanged, prepending ["timeout", "<n>s"] when a
// deadline is supplied. It is not required to deliver chunks in real time:
// it buffers each stream fully, then replays non-empty lines to the
// handlers with a freshly sampled timestamp, preserving stream partitioning
// and within-stream order only.
func (s *localSession) ExecCommand(ctx context.Context, argv []string, workdir string, timeout time.Duration, onStdout, onStderr OutputHandler) (bool, error) {
	if len(argv) == 0 {
		return false, rerrors.NewTransportError("empty command", nil)
	}

	fullArgv := argv
	if timeout > 0 {
		secs := int(math.Ceil(timeout.Seconds()))
		fullArgv = append([]string{"timeout", fmt.Sprintf("%ds", secs)}, argv...)
	}

	cmd := exec.Command(fullArgv[0], fullArgv[1:]...)
	if workdir != "" {
		cmd.Dir = workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	replayLines(stdout.String(), onStdout)
	replayLines(stderr.String(), onStderr)

	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, rerrors.NewTransportError("spawning local command", err)
}

func replayLines(s string, handler OutputHandler) {
	if s == "" {
		return
	}
	for _, line := range strings.Split(s, "\n") {
		if line == "" {
			continue
		}
		handler(time.Now(), line+"\n")
	}
}

func (s *localSession) DeployKey(ctx context.Context, publicKeyPath string) error { return nil }

func (s *localSession) DeleteKey(ctx context.Context, publicKeyPath string) error { return nil }
