// Package backend defines the execution-backend capability set the
// submission orchestrator programs against, plus two implementations: a
// remote backend driving an interactive SSH/SFTP session, and a local
// backend spawning a child process. The orchestrator never type-switches on
// which one it holds.
package backend

import (
	"context"
	"time"
)

// OutputHandler receives one chunk of decoded stdout/stderr text along with
// the instant it was observed.
type OutputHandler func(now time.Time, chunk string)

// OpenMode selects the mode Open uses to access a file.
type OpenMode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly OpenMode = iota
	// WriteOnly creates or truncates a file for writing.
	WriteOnly
)

// FileAttr is one directory-listing entry: a filename and its modification
// time, the minimum attribute set both backends can expose uniformly.
type FileAttr struct {
	Filename     string
	MtimeSeconds int64
}

// File is a handle returned by Session.Open. Callers must Close it.
type File interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// ConnectOptions carries the credentials connect attempts, per the policy
// described in the remote backend's documentation: password auth alone if a
// password is supplied, otherwise public-key auth alone.
type ConnectOptions struct {
	Password      string
	PublicKeyPath string
}

// Backend constructs a Session bound to one target. Backends are selected
// by a boolean "remote" parameter at the orchestrator's entry point — true
// for Remote, false for Local.
type Backend interface {
	// Connect establishes a session, returning a scoped handle that
	// releases every resource it acquired once Close is called on any exit
	// path (normal return, error, or deadline). Fails with an *rerrors.AuthError
	// if no valid credential is supplied or accepted.
	Connect(ctx context.Context, opts ConnectOptions) (Session, error)
}

// Session is the capability set every backend's connected handle exposes.
type Session interface {
	// Close idempotently releases every resource Connect acquired.
	Close() error

	// Chdir sets the working directory used by subsequent Open/ListDirAttr/
	// ExecCommand calls. On the remote backend this creates the directory
	// and any missing parents if absent; on the local backend it only
	// updates in-memory state.
	Chdir(ctx context.Context, dir string) error

	// Open returns a handle rooted in the current working directory.
	Open(ctx context.Context, filename string, mode OpenMode) (File, error)

	// ListDirAttr returns every entry of the current working directory.
	ListDirAttr(ctx context.Context) ([]FileAttr, error)

	// ExecCommand runs a single command to completion, invoking onStdout/
	// onStderr as chunks of decoded output arrive. It returns true iff the
	// command's exit status was zero. A zero timeout means no deadline.
	ExecCommand(ctx context.Context, argv []string, workdir string, timeout time.Duration, onStdout, onStderr OutputHandler) (bool, error)

	// DeployKey idempotently installs the local public key at publicKeyPath
	// into the target's ~/.ssh/authorized_keys.
	DeployKey(ctx context.Context, publicKeyPath string) error

	// DeleteKey idempotently removes the local public key at publicKeyPath
	// from the target's ~/.ssh/authorized_keys.
	DeleteKey(ctx context.Context, publicKeyPath string) error
}
