package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/profprune/internal/domain"
)

func TestSessionLogName(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 3, 7, 0, time.UTC)

	tests := []struct {
		host string
		want string
	}{
		{"WS-042", "profprune-WS-042-20240501-090307.log"},
		{`CORP\WS-042`, "profprune-CORP_WS-042-20240501-090307.log"},
		{"fe80::1", "profprune-fe80__1-20240501-090307.log"},
		{"  ", "profprune-unknown-20240501-090307.log"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionLogName(tt.host, at))
		})
	}
}

func TestFileLogSink_WritesSectionsAndLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	sink, err := NewFileLogSink(dir, "WS-042", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "profprune-WS-042-20240501-090000.log"), sink.Path())

	sink.AppendSection("Profiles before removal", []string{
		"jdoe\tS-1-5-21-1-1001\tC:\\Users\\jdoe",
		"administrator\tS-1-5-21-1-500\tC:\\Users\\administrator",
	})
	sink.AppendSection("Removed", nil)
	sink.AppendLine("keep entry \"ghost\" matched no profile", domain.SeverityWarn)
	sink.AppendLine("access denied", domain.SeverityError)
	sink.AppendLine("done", domain.SeverityInfo)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "=== Profiles before removal (2) ===")
	assert.Contains(t, content, "=== Removed (0) ===")
	assert.Contains(t, content, "(none)")
	assert.Contains(t, content, "WARN")
	assert.Contains(t, content, "ERROR")
	assert.Contains(t, content, "access denied")

	// Columns are aligned: both SIDs start at the same offset.
	var offsets []int
	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "S-1-5-21-1-"); idx >= 0 {
			offsets = append(offsets, idx)
		}
	}
	require.Len(t, offsets, 2)
	assert.Equal(t, offsets[0], offsets[1])
}

func TestFileLogSink_CloseIdempotent(t *testing.T) {
	sink, err := NewFileLogSink(t.TempDir(), "WS-042", time.Now())
	require.NoError(t, err)

	assert.NoError(t, sink.Close())
	assert.NoError(t, sink.Close())
}

func TestAlignColumns(t *testing.T) {
	lines := alignColumns([]string{"a\tb", "longer\tc"})

	require.Len(t, lines, 2)
	assert.Equal(t, strings.Index(lines[0], "b"), strings.Index(lines[1], "c"))
}
