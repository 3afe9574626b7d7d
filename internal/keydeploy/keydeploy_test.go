package keydeploy

import (
	"context"
	"testing"

	"github.com/runforge/runforge/internal/backend"
)

func TestCopyAndDeleteKeyToLocalBackendAreNoOps(t *testing.T) {
	orig := NewBackend
	defer func() { NewBackend = orig }()
	NewBackend = func(remote bool, hostname, username string, port int) backend.Backend {
		return backend.NewLocal()
	}

	target := Target{Remote: false, PublicKeyPath: "/dev/null"}

	if err := CopyKeyToServer(context.Background(), target); err != nil {
		t.Fatalf("CopyKeyToServer: %v", err)
	}
	if err := DeleteKeyFromServer(context.Background(), target); err != nil {
		t.Fatalf("DeleteKeyFromServer: %v", err)
	}
}
