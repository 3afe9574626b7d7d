// Package keydeploy exposes the key-installation operation independently of
// a Job submission: a caller provisions a Server with the local public key
// (or revokes it) before any Job ever targets that Server. The actual
// idempotent install/remove logic lives in the backend.Session
// implementations; this package only connects and delegates.
package keydeploy

import (
	"context"

	"github.com/runforge/runforge/internal/backend"
)

// Target names the host a key operation runs against.
type Target struct {
	Remote        bool
	Hostname      string
	Username      string
	Port          int
	Password      string
	PublicKeyPath string
}

// NewBackend constructs a Backend for (remote, hostname, username, port).
// Overridable in tests; defaults to backend.NewRemote/NewLocal.
var NewBackend = defaultNewBackend

func defaultNewBackend(remote bool, hostname, username string, port int) backend.Backend {
	if remote {
		return backend.NewRemote(hostname, username, port)
	}
	return backend.NewLocal()
}

// CopyKeyToServer connects to t and idempotently installs t.PublicKeyPath
// into the target's authorized_keys.
func CopyKeyToServer(ctx context.Context, t Target) error {
	return withSession(ctx, t, func(sess backend.Session) error {
		return sess.DeployKey(ctx, t.PublicKeyPath)
	})
}

// DeleteKeyFromServer connects to t and idempotently removes t.PublicKeyPath
// from the target's authorized_keys.
func DeleteKeyFromServer(ctx context.Context, t Target) error {
	return withSession(ctx, t, func(sess backend.Session) error {
		return sess.DeleteKey(ctx, t.PublicKeyPath)
	})
}

func withSession(ctx context.Context, t Target, fn func(backend.Session) error) error {
	be := NewBackend(t.Remote, t.Hostname, t.Username, t.Port)
	sess, err := be.Connect(ctx, backend.ConnectOptions{Password: t.Password, PublicKeyPath: t.PublicKeyPath})
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}
