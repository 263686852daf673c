package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// newTestRunStore creates an encrypted run store in a temp directory for testing.
func newTestRunStore(t *testing.T) (*EncryptedRunStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedRunStore(dataDir, key)
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store, dataDir
}

var sampleTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleRun(id string, started time.Time) domain.RunRecord {
	return domain.RunRecord{
		ID:           id,
		Host:         "WS-042",
		Workstation:  "TECH-LAPTOP",
		Operator:     `CORP\helpdesk`,
		StartedAt:    started,
		FinishedAt:   started.Add(3 * time.Second),
		BeforeCount:  4,
		AfterCount:   3,
		RemovedCount: 1,
		SkippedCount: 3,
		FailedCount:  0,
		ResultsJSON:  `{"removed":[],"skipped":[]}`,
	}
}

func TestEncryptedRunStore_SaveAndGet(t *testing.T) {
	store, _ := newTestRunStore(t)
	started := time.Date(2024, 5, 1, 9, 0, 0, 123e6, time.UTC)
	run := sampleRun("run-1", started)
	run.DryRun = true

	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "WS-042", got.Host)
	assert.Equal(t, `CORP\helpdesk`, got.Operator)
	assert.True(t, got.DryRun)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, 1, got.RemovedCount)
	assert.Equal(t, 3, got.SkippedCount)
	assert.Equal(t, run.ResultsJSON, got.ResultsJSON)
}

func TestEncryptedRunStore_GetUnknown(t *testing.T) {
	store, _ := newTestRunStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestEncryptedRunStore_SaveRequiresID(t *testing.T) {
	store, _ := newTestRunStore(t)

	assert.Error(t, store.SaveRun(sampleRun("", time.Now())))
}

func TestEncryptedRunStore_ListRuns(t *testing.T) {
	base := sampleTime

	tests := []struct {
		name    string
		limit   int
		wantIDs []string
	}{
		{name: "newest first", limit: 0, wantIDs: []string{"run-3", "run-2", "run-1"}},
		{name: "limited", limit: 2, wantIDs: []string{"run-3", "run-2"}},
		{name: "limit larger than history", limit: 10, wantIDs: []string{"run-3", "run-2", "run-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestRunStore(t)
			require.NoError(t, store.SaveRun(sampleRun("run-2", base.Add(time.Hour))))
			require.NoError(t, store.SaveRun(sampleRun("run-1", base)))
			require.NoError(t, store.SaveRun(sampleRun("run-3", base.Add(2*time.Hour))))

			runs, err := store.ListRuns(tt.limit)
			require.NoError(t, err)

			ids := make([]string, len(runs))
			for i, r := range runs {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestEncryptedRunStore_ListEmpty(t *testing.T) {
	store, _ := newTestRunStore(t)

	runs, err := store.ListRuns(5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEncryptedRunStore_SaveReplaces(t *testing.T) {
	store, _ := newTestRunStore(t)
	run := sampleRun("run-1", time.Now())
	require.NoError(t, store.SaveRun(run))

	run.FailedCount = 2
	require.NoError(t, store.SaveRun(run))

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].FailedCount)
}

func TestEncryptedRunStore_Encryption(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T)
	}{
		{
			name: "database file does not contain plaintext",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key, err := GenerateKey()
				require.NoError(t, err)

				store, err := NewEncryptedRunStore(dataDir, key)
				require.NoError(t, err)
				require.NoError(t, store.SaveRun(sampleRun("run-plaintext-check", time.Now())))
				store.Close()

				rawData, err := os.ReadFile(filepath.Join(dataDir, RunStoreDBName))
				require.NoError(t, err)
				assert.NotContains(t, string(rawData), "run-plaintext-check")
				assert.NotContains(t, string(rawData), "TECH-LAPTOP")
			},
		},
		{
			name: "wrong key fails to open",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key1, _ := GenerateKey()
				key2, _ := GenerateKey()

				store1, err := NewEncryptedRunStore(dataDir, key1)
				require.NoError(t, err)
				require.NoError(t, store1.SaveRun(sampleRun("run-1", time.Now())))
				store1.Close()

				_, err = NewEncryptedRunStore(dataDir, key2)
				assert.Error(t, err)
			},
		},
		{
			name: "correct key reads data",
			testFn: func(t *testing.T) {
				dataDir := t.TempDir()
				key, _ := GenerateKey()

				store1, err := NewEncryptedRunStore(dataDir, key)
				require.NoError(t, err)
				require.NoError(t, store1.SaveRun(sampleRun("run-1", time.Now())))
				store1.Close()

				store2, err := NewEncryptedRunStore(dataDir, key)
				require.NoError(t, err)
				defer store2.Close()

				got, err := store2.GetRun("run-1")
				require.NoError(t, err)
				assert.Equal(t, "WS-042", got.Host)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFn)
	}
}

func TestEncryptedRunStore_SchemaVersion(t *testing.T) {
	store, _ := newTestRunStore(t)

	var version string
	require.NoError(t, store.db.Get(&version, `SELECT value FROM meta WHERE key = 'schema_version'`))
	assert.Equal(t, schemaVersion, version)
}

func TestEncryptedRunStore_Close_Idempotent(t *testing.T) {
	store, dataDir := newTestRunStore(t)

	assert.Equal(t, filepath.Join(dataDir, RunStoreDBName), store.Path())
	assert.NoError(t, store.Close())

	store.db = nil
	assert.NoError(t, store.Close())
}
