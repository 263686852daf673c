package usecase

import (
	"context"
	"errors"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// mockInventory implements domain.InventorySource for testing
type mockInventory struct {
	profiles   []domain.ProfileRecord
	listErr    error
	afterErr   error // returned from the second and later ListProfiles calls
	deleteErrs map[string]error
	deleted    []string
	attempted  []string
	listCalls  int
}

func (m *mockInventory) ListProfiles(ctx context.Context, host string) ([]domain.ProfileRecord, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listCalls > 1 && m.afterErr != nil {
		return nil, m.afterErr
	}
	remaining := make([]domain.ProfileRecord, 0, len(m.profiles))
	for _, p := range m.profiles {
		if !contains(m.deleted, p.SecurityID) {
			remaining = append(remaining, p)
		}
	}
	return remaining, nil
}

func (m *mockInventory) DeleteProfile(ctx context.Context, host string, profile domain.ProfileRecord) error {
	m.attempted = append(m.attempted, profile.SecurityID)
	if err, ok := m.deleteErrs[profile.SecurityID]; ok {
		return err
	}
	m.deleted = append(m.deleted, profile.SecurityID)
	return nil
}

// mockLogSink implements domain.LogSink for testing
type mockLogSink struct {
	sections map[string][]string
	lines    map[domain.Severity][]string
	closed   bool
}

func newMockLogSink() *mockLogSink {
	return &mockLogSink{
		sections: make(map[string][]string),
		lines:    make(map[domain.Severity][]string),
	}
}

func (m *mockLogSink) AppendSection(title string, lines []string) {
	m.sections[title] = lines
}

func (m *mockLogSink) AppendLine(message string, severity domain.Severity) {
	m.lines[severity] = append(m.lines[severity], message)
}

func (m *mockLogSink) Close() error {
	m.closed = true
	return nil
}

// mockInput implements domain.InputProvider for testing
type mockInput struct {
	confirm    bool
	confirmErr error
	asked      []string
}

func (m *mockInput) Prompt(label string) (string, error) {
	return "", errors.New("not scripted")
}

func (m *mockInput) Confirm(question string) (bool, error) {
	m.asked = append(m.asked, question)
	return m.confirm, m.confirmErr
}

// mockReport implements domain.ReportSink for testing
type mockReport struct {
	tables   map[string][]domain.ProfileRecord
	results  map[string][]domain.RemovalResult
	warnings []string
	progress [][2]int
}

func newMockReport() *mockReport {
	return &mockReport{
		tables:  make(map[string][]domain.ProfileRecord),
		results: make(map[string][]domain.RemovalResult),
	}
}

func (m *mockReport) Profiles(title string, profiles []domain.ProfileRecord) {
	m.tables[title] = profiles
}

func (m *mockReport) Results(title string, results []domain.RemovalResult) {
	m.results[title] = results
}

func (m *mockReport) Warn(message string) {
	m.warnings = append(m.warnings, message)
}

func (m *mockReport) Progress(done, total int) {
	m.progress = append(m.progress, [2]int{done, total})
}

// mockRunStore implements domain.RunStore for testing
type mockRunStore struct {
	saved   []domain.RunRecord
	saveErr error
}

func (m *mockRunStore) SaveRun(record domain.RunRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, record)
	return nil
}

func (m *mockRunStore) ListRuns(limit int) ([]domain.RunRecord, error) {
	return m.saved, nil
}

func (m *mockRunStore) GetRun(id string) (*domain.RunRecord, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRunStore) Close() error {
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sids(results []domain.RemovalResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Profile.SecurityID
	}
	return out
}
