// Package config defines the plain configuration record accepted by a
// submission. Its recognized fields are exactly those of the orchestrator's
// public contract — no reflection-driven option discovery, no dynamic
// schema: a caller either sets one of these fields or it takes its default.
package config

import (
	"time"

	"github.com/runforge/runforge/internal/logbuffer"
)

// Submission holds every option a submit call accepts.
type Submission struct {
	// Remote selects the execution backend: true for the SSH/SFTP backend,
	// false for the local-process backend. Defaults to true.
	Remote bool

	// LogPolicy selects how output is converted into Log rows. Defaults to
	// logbuffer.PolicyLive.
	LogPolicy logbuffer.Policy

	// Timeout bounds the execution step. Zero means no deadline.
	Timeout time.Duration

	// StoreResults is the pattern list result capture filters produced
	// files through. Nil means "match everything" (glob's own default).
	StoreResults []string

	// PublicKeyPath, Username, and Password carry the credentials and
	// identity a remote connect attempt uses. Username falls back to the
	// Job owner's username when empty.
	PublicKeyPath string
	Username      string
	Password      string
}

// Default returns the baseline Submission: remote execution, live log
// streaming, no deadline, no result filtering, no explicit credentials.
func Default() Submission {
	return Submission{
		Remote:    true,
		LogPolicy: logbuffer.PolicyLive,
	}
}
