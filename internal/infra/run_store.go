package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/profprune/internal/domain"
)

const (
	// RunStoreDBName is the history database file inside the data directory.
	RunStoreDBName = "runs.db"

	schemaVersion = "1"
)

// runRow is the persisted shape of domain.RunRecord. Times are unix milliseconds.
type runRow struct {
	ID           string `db:"id"`
	Host         string `db:"host"`
	Workstation  string `db:"workstation"`
	Operator     string `db:"operator"`
	DryRun       bool   `db:"dry_run"`
	StartedAt    int64  `db:"started_at"`
	FinishedAt   int64  `db:"finished_at"`
	BeforeCount  int    `db:"before_count"`
	AfterCount   int    `db:"after_count"`
	RemovedCount int    `db:"removed_count"`
	SkippedCount int    `db:"skipped_count"`
	FailedCount  int    `db:"failed_count"`
	ResultsJSON  string `db:"results_json"`
}

// EncryptedRunStore implements domain.RunStore using a SQLCipher encrypted SQLite database.
type EncryptedRunStore struct {
	db     *sqlx.DB
	dbPath string
}

// NewEncryptedRunStore opens (or creates) the run history database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedRunStore(dataDir string, key []byte) (*EncryptedRunStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, RunStoreDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedRunStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *EncryptedRunStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		workstation TEXT NOT NULL DEFAULT '',
		operator TEXT NOT NULL DEFAULT '',
		dry_run INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		before_count INTEGER NOT NULL,
		after_count INTEGER NOT NULL,
		removed_count INTEGER NOT NULL,
		skipped_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		results_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
	return err
}

// SaveRun stores a completed run. Saving the same ID twice replaces it.
func (s *EncryptedRunStore) SaveRun(record domain.RunRecord) error {
	if record.ID == "" {
		return errors.New("run record has no ID")
	}
	_, err := s.db.NamedExec(`
		INSERT OR REPLACE INTO runs (
			id, host, workstation, operator, dry_run, started_at, finished_at,
			before_count, after_count, removed_count, skipped_count, failed_count, results_json
		) VALUES (
			:id, :host, :workstation, :operator, :dry_run, :started_at, :finished_at,
			:before_count, :after_count, :removed_count, :skipped_count, :failed_count, :results_json
		)`, toRunRow(record))
	return err
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *EncryptedRunStore) ListRuns(limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	var rows []runRow
	err := s.db.Select(&rows, `SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	records := make([]domain.RunRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

// GetRun returns a single run by ID.
func (s *EncryptedRunStore) GetRun(id string) (*domain.RunRecord, error) {
	var row runRow
	err := s.db.Get(&row, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	record := row.toRecord()
	return &record, nil
}

// Path returns the database file path.
func (s *EncryptedRunStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedRunStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toRunRow(r domain.RunRecord) runRow {
	return runRow{
		ID:           r.ID,
		Host:         r.Host,
		Workstation:  r.Workstation,
		Operator:     r.Operator,
		DryRun:       r.DryRun,
		StartedAt:    r.StartedAt.UnixMilli(),
		FinishedAt:   r.FinishedAt.UnixMilli(),
		BeforeCount:  r.BeforeCount,
		AfterCount:   r.AfterCount,
		RemovedCount: r.RemovedCount,
		SkippedCount: r.SkippedCount,
		FailedCount:  r.FailedCount,
		ResultsJSON:  r.ResultsJSON,
	}
}

func (row runRow) toRecord() domain.RunRecord {
	return domain.RunRecord{
		ID:           row.ID,
		Host:         row.Host,
		Workstation:  row.Workstation,
		Operator:     row.Operator,
		DryRun:       row.DryRun,
		StartedAt:    time.UnixMilli(row.StartedAt),
		FinishedAt:   time.UnixMilli(row.FinishedAt),
		BeforeCount:  row.BeforeCount,
		AfterCount:   row.AfterCount,
		RemovedCount: row.RemovedCount,
		SkippedCount: row.SkippedCount,
		FailedCount:  row.FailedCount,
		ResultsJSON:  row.ResultsJSON,
	}
}

// Ensure EncryptedRunStore implements domain.RunStore.
var _ domain.RunStore = (*EncryptedRunStore)(nil)
