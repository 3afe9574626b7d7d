// Package model defines the gorm-mapped persistence schema for the core
// entities: Interpreter, Server, Job, Log, Result. Field names and the
// base/cascade conventions follow the same shape arkeep's db package uses
// for its own entities (UUID v7 primary keys, explicit join tables instead
// of relying on GORM's foreign-key resolution for uuid.UUID columns).
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base holds the fields shared by every entity. ID is a time-ordered UUID v7,
// generated on insert if not already set.
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a UUID v7 if the caller has not already set one.
func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// JobStatus enumerates the lifecycle states of a Job (spec.md §3).
type JobStatus string

const (
	JobInitial   JobStatus = "initial"
	JobSubmitted JobStatus = "submitted"
	JobSuccess   JobStatus = "success"
	JobFailure   JobStatus = "failure"
)

// LogStream identifies which process stream a Log record captured.
type LogStream string

const (
	StreamStdout LogStream = "stdout"
	StreamStderr LogStream = "stderr"
)

// Interpreter is an executable contract on a target host: a human label, the
// absolute path to the interpreter binary, and arguments prepended before the
// program filename on the command line. Immutable after creation.
type Interpreter struct {
	base
	Name string `gorm:"not null"`
	Path string `gorm:"not null"`
	// Arguments is stored as a JSON array of strings.
	Arguments string `gorm:"type:text;not null;default:'[]'"`
}

// Server is a target host plus the set of Interpreters allowed to run on it.
// Membership is tracked via the ServerInterpreter join table because GORM
// cannot auto-resolve many-to-many associations keyed by uuid.UUID columns.
type Server struct {
	base
	Title    string `gorm:"not null"`
	Hostname string `gorm:"not null"`
	Port     int    `gorm:"not null;default:22"`
}

// ServerInterpreter is the join table recording which Interpreters a Server
// permits. Loaded and written via explicit repository queries.
type ServerInterpreter struct {
	base
	ServerID      uuid.UUID `gorm:"type:text;not null;index"`
	InterpreterID uuid.UUID `gorm:"type:text;not null;index"`
}

// Job is one unit of work: a program to run on a Server under an Interpreter,
// owned by a user. UUID is a distinct, application-level random identity
// (separate from the primary key) that stays stable across title renames and
// is used to key on-disk result paths — see spec.md §3 and §6.
type Job struct {
	base
	Title           string    `gorm:"not null"`
	UUID            uuid.UUID `gorm:"type:text;not null;uniqueIndex"`
	Program         string    `gorm:"type:text;not null"`
	Status          JobStatus `gorm:"not null;default:'initial'"`
	RemoteDirectory string    `gorm:"not null"`
	RemoteFilename  string    `gorm:"not null"`
	OwnerID         uuid.UUID `gorm:"type:text;not null;index"`
	OwnerUsername   string    `gorm:"not null"`
	ServerID        uuid.UUID `gorm:"type:text;not null;index"`
	InterpreterID   uuid.UUID `gorm:"type:text;not null;index"`
}

// Log is one persisted burst of output produced during a Job's execution.
// Cascades from Job at the migration level (ON DELETE CASCADE).
type Log struct {
	base
	JobID   uuid.UUID `gorm:"type:text;not null;index"`
	Time    time.Time `gorm:"not null"`
	Content string    `gorm:"type:text;not null"`
	Stream  LogStream `gorm:"not null"`
}

// Result is one file captured after a Job's run completed. LocalFile is an
// opaque storage key resolving to results/<job.uuid>/<remote_filename>.
type Result struct {
	base
	JobID          uuid.UUID `gorm:"type:text;not null;index"`
	RemoteFilename string    `gorm:"not null"`
	LocalFile      string    `gorm:"not null"`
}
