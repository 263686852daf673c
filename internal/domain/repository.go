package domain

import "context"

// InventorySource enumerates and deletes user profiles on a host.
// Implementations: WMI (Windows, remote) and YAML snapshot (any platform).
type InventorySource interface {
	// ListProfiles returns the current profile snapshot of host.
	ListProfiles(ctx context.Context, host string) ([]ProfileRecord, error)

	// DeleteProfile removes one profile (files and registry hive) from host.
	// Irreversible on success.
	DeleteProfile(ctx context.Context, host string, profile ProfileRecord) error
}

// LogSink is an append-only, human-readable audit trail for one session.
// It is a recording side channel, never consulted for control flow.
type LogSink interface {
	// AppendSection writes a titled block, one line per entry.
	// Use AppendItems to format typed items.
	AppendSection(title string, lines []string)

	// AppendLine writes a single message at the given severity.
	AppendLine(message string, severity Severity)

	// Close flushes the sink.
	Close() error
}

// InputProvider supplies operator input.
type InputProvider interface {
	// Prompt asks for a single line of input.
	Prompt(label string) (string, error)

	// Confirm asks a yes/no question. Anything other than an explicit yes declines.
	Confirm(question string) (bool, error)
}

// ReportSink renders run output for the operator.
type ReportSink interface {
	// Profiles renders an inventory snapshot table.
	Profiles(title string, profiles []ProfileRecord)

	// Results renders removed/skipped results with their reasons.
	Results(title string, results []RemovalResult)

	// Warn surfaces an advisory message.
	Warn(message string)

	// Progress reports deletion progress; done == -1 marks completion.
	Progress(done, total int)
}

// RunStore persists the audit history of runs.
// Implementation: SQLCipher encrypted SQLite database.
type RunStore interface {
	// SaveRun stores a completed run.
	SaveRun(record RunRecord) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]RunRecord, error)

	// GetRun returns a single run by ID.
	GetRun(id string) (*RunRecord, error)

	// Close releases the database connection.
	Close() error
}

// KeyProvider abstracts the source of the run store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// FileSystemManager handles filesystem operations for directory-backed profiles.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// Delete removes a profile directory recursively.
	Delete(path string) error
}

// SessionProbe reports which accounts currently own running processes on
// the local machine. Used to refresh IsLoaded for local snapshots.
type SessionProbe interface {
	// ActiveUsers returns account names (without domain prefix) with live processes.
	ActiveUsers() (map[string]bool, error)
}

// SessionManager lists and logs off terminal-server sessions on a host.
type SessionManager interface {
	// ListSessions returns all sessions on host.
	ListSessions(host string) ([]Session, error)

	// LogoffUser logs off every session of user on host and returns the session IDs.
	LogoffUser(host, user string) ([]uint32, error)
}

// AppendItems formats items with format and appends them to sink as one section.
func AppendItems[T any](sink LogSink, title string, items []T, format func(T) string) {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = format(item)
	}
	sink.AppendSection(title, lines)
}
