// Package domain contains core entities and the interfaces the engine depends on.
// This is the innermost layer - no external dependencies.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrEmptyHost is returned when no target host was supplied.
	ErrEmptyHost = errors.New("target host is required")

	// ErrCancelled is returned when the operator declines the confirmation prompt.
	ErrCancelled = errors.New("cancelled by operator")

	// ErrInventoryUnavailable wraps any failure to enumerate a host's profiles.
	ErrInventoryUnavailable = errors.New("profile inventory unavailable")

	// ErrUnsupportedPlatform is returned by Windows-only adapters on other platforms.
	ErrUnsupportedPlatform = errors.New("not supported on this platform")

	// ErrProfileNotFound is returned when a profile vanished between listing and deletion.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrRunNotFound is returned by RunStore.GetRun for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")
)

// ProfileRecord is one local user profile discovered on a target host.
// Records are read-only snapshots; the engine classifies them, never mutates them.
type ProfileRecord struct {
	Name        string     `json:"name"`
	SecurityID  string     `json:"sid"`
	StoragePath string     `json:"path"`
	LastUseTime *time.Time `json:"last_use,omitempty"` // nil when unknown or unparseable
	IsLoaded    bool       `json:"loaded"`
}

// KeepSpecification is the operator-supplied preservation rule, resolved
// against one inventory snapshot.
type KeepSpecification struct {
	NamesToKeep       []string // trimmed, deduplicated case-insensitively
	SecurityIDsToKeep []string // every SID the kept names resolve to
	UnmatchedNames    []string // kept names with no inventory record (warnings only)
}

// ReasonKind enumerates why a profile ended up removed or skipped.
type ReasonKind int

const (
	ReasonRemoved ReasonKind = iota
	ReasonSystemAccount
	ReasonKeepListBySid
	ReasonKeepListByName
	ReasonCurrentlyLoaded
	ReasonRemovalFailed
)

// String returns the reason name used in logs and reports.
func (k ReasonKind) String() string {
	switch k {
	case ReasonRemoved:
		return "Removed"
	case ReasonSystemAccount:
		return "SystemAccount"
	case ReasonKeepListBySid:
		return "KeepListBySid"
	case ReasonKeepListByName:
		return "KeepListByName"
	case ReasonCurrentlyLoaded:
		return "CurrentlyLoaded"
	case ReasonRemovalFailed:
		return "RemovalFailed"
	default:
		return "Unknown"
	}
}

// RemovalReason is a tagged union: Kind selects the variant, Detail is only
// populated for ReasonRemovalFailed.
type RemovalReason struct {
	Kind   ReasonKind
	Detail string
}

// Reason builds a detail-less reason.
func Reason(kind ReasonKind) RemovalReason {
	return RemovalReason{Kind: kind}
}

// RemovalFailed builds the failure variant carrying the error detail.
func RemovalFailed(detail string) RemovalReason {
	return RemovalReason{Kind: ReasonRemovalFailed, Detail: detail}
}

func (r RemovalReason) String() string {
	if r.Kind == ReasonRemovalFailed && r.Detail != "" {
		return r.Kind.String() + ": " + r.Detail
	}
	return r.Kind.String()
}

// Action is the final outcome for one profile.
type Action string

const (
	ActionRemoved Action = "Removed"
	ActionSkipped Action = "Skipped"
)

// RemovalResult is the immutable outcome for one profile.
type RemovalResult struct {
	Action  Action
	Reason  RemovalReason
	Profile ProfileRecord
}

// RemovalPlan is the output of classification: candidates for deletion and
// profiles already skipped with their reason.
type RemovalPlan struct {
	ToRemove []ProfileRecord
	ToSkip   []RemovalResult
}

// RunReport captures everything one removal run produced.
type RunReport struct {
	RunID      string
	Host       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Before     []ProfileRecord
	After      []ProfileRecord
	Keep       KeepSpecification
	Plan       RemovalPlan
	Removed    []RemovalResult
	Skipped    []RemovalResult
	Warnings   []string
}

// RunRecord is the persisted summary of a run (audit history).
type RunRecord struct {
	ID           string
	Host         string
	Workstation  string
	Operator     string
	DryRun       bool
	StartedAt    time.Time
	FinishedAt   time.Time
	BeforeCount  int
	AfterCount   int
	RemovedCount int
	SkippedCount int
	FailedCount  int
	ResultsJSON  string // removed and skipped results, for `history --run`
}

// Severity of a log sink line.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Session is one terminal-server session on a host.
type Session struct {
	ID       uint32
	UserName string // DOMAIN\user or plain user, empty for unattended sessions
	Station  string
	State    string
}
