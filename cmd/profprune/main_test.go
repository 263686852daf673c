package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/profprune/internal/config"
	"github.com/eliteGoblin/profprune/internal/domain"
)

type stubInput struct {
	answer string
	err    error
}

func (s stubInput) Prompt(string) (string, error) { return s.answer, s.err }
func (s stubInput) Confirm(string) (bool, error)  { return false, nil }

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		input   stubInput
		want    string
		wantErr error
	}{
		{name: "argument wins", args: []string{" WS-042 "}, input: stubInput{answer: "ignored"}, want: "WS-042"},
		{name: "prompted", input: stubInput{answer: "WS-007"}, want: "WS-007"},
		{name: "blank answer", input: stubInput{answer: "   "}, wantErr: domain.ErrEmptyHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveHost(tt.args, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveHost_PromptError(t *testing.T) {
	_, err := resolveHost(nil, stubInput{err: errors.New("stdin closed")})
	assert.ErrorContains(t, err, "stdin closed")
}

func TestCollectKeepNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(path, []byte("# lab accounts\nlabuser\nADMIN\n\n"), 0644))

	keepNames = []string{"jdoe", "admin"}
	keepFile = path
	t.Cleanup(func() {
		keepNames = nil
		keepFile = ""
	})

	got, err := collectKeepNames(&config.Config{DefaultKeep: []string{"Administrator"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Administrator", "jdoe", "admin", "labuser"}, got)
}

func TestCollectKeepNames_MissingFile(t *testing.T) {
	keepFile = filepath.Join(t.TempDir(), "absent.txt")
	t.Cleanup(func() { keepFile = "" })

	_, err := collectKeepNames(&config.Config{})
	assert.ErrorContains(t, err, "failed to open keep file")
}

func TestRunVersion_JSONEscapes(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	Version, Commit = `1.0 "beta"`, `a\b`
	jsonOutput = true
	t.Cleanup(func() {
		Version, Commit = oldVersion, oldCommit
		jsonOutput = false
	})

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	require.NoError(t, runVersion(versionCmd, nil))

	var got buildInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, `1.0 "beta"`, got.Version)
	assert.Equal(t, `a\b`, got.Commit)
}
