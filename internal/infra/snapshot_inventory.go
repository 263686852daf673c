package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/profprune/internal/domain"
	"github.com/eliteGoblin/profprune/internal/policy"
)

// Snapshot is the on-disk inventory of one host.
type Snapshot struct {
	Host     string            `yaml:"host"`
	Root     string            `yaml:"root,omitempty"`
	Profiles []SnapshotProfile `yaml:"profiles"`
}

// SnapshotProfile is one profile entry in a snapshot file.
type SnapshotProfile struct {
	Name    string `yaml:"name,omitempty"`
	SID     string `yaml:"sid"`
	Path    string `yaml:"path"`
	LastUse string `yaml:"last_use,omitempty"`
	Loaded  bool   `yaml:"loaded,omitempty"`
}

var lastUseLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// SnapshotInventory implements domain.InventorySource over YAML snapshot files.
// path is either a single snapshot file or a directory of <host>.yaml files.
// Deleting a profile removes its directory (confined to the snapshot root when
// one is set) and rewrites the snapshot without the entry.
type SnapshotInventory struct {
	path     string
	fs       domain.FileSystemManager
	probe    domain.SessionProbe
	hostname func() (string, error)
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewSnapshotInventory creates a snapshot-backed inventory. probe may be nil.
func NewSnapshotInventory(path string, probe domain.SessionProbe, logger *zap.Logger) *SnapshotInventory {
	return &SnapshotInventory{
		path:     path,
		probe:    probe,
		hostname: os.Hostname,
		logger:   logger,
	}
}

// SetFileSystem overrides the filesystem used for directory deletion.
func (s *SnapshotInventory) SetFileSystem(fs domain.FileSystemManager) {
	s.fs = fs
}

// ListProfiles reads the snapshot for host.
func (s *SnapshotInventory) ListProfiles(ctx context.Context, host string) ([]domain.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, _, err := s.load(host)
	if err != nil {
		return nil, err
	}

	active := s.activeUsers(host)

	profiles := make([]domain.ProfileRecord, 0, len(snap.Profiles))
	for _, entry := range snap.Profiles {
		record, ok := entry.toProfileRecord()
		if !ok {
			s.logger.Debug("skipping snapshot entry without name or sid", zap.String("path", entry.Path))
			continue
		}
		if active[policy.Fold(record.Name)] {
			record.IsLoaded = true
		}
		profiles = append(profiles, record)
	}
	return profiles, nil
}

// DeleteProfile removes the profile directory and its snapshot entry.
func (s *SnapshotInventory) DeleteProfile(ctx context.Context, host string, profile domain.ProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, file, err := s.load(host)
	if err != nil {
		return err
	}

	idx := snap.indexOf(profile)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, profile.SecurityID)
	}

	dir := snap.Profiles[idx].Path
	fs := s.filesystem(snap.Root)
	if dir != "" && fs.Exists(dir) {
		if err := fs.Delete(dir); err != nil {
			return fmt.Errorf("failed to delete %s: %w", dir, err)
		}
	} else {
		s.logger.Debug("profile directory already gone", zap.String("path", dir))
	}

	snap.Profiles = append(snap.Profiles[:idx], snap.Profiles[idx+1:]...)
	return atomicWriteYAML(file, snap)
}

// resolve returns the snapshot file for host.
func (s *SnapshotInventory) resolve(host string) string {
	info, err := os.Stat(s.path)
	if err == nil && info.IsDir() {
		return filepath.Join(s.path, strings.TrimSpace(host)+".yaml")
	}
	return s.path
}

func (s *SnapshotInventory) load(host string) (*Snapshot, string, error) {
	file := s.resolve(host)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, file, fmt.Errorf("failed to read snapshot %s: %w", file, err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, file, fmt.Errorf("failed to parse snapshot %s: %w", file, err)
	}

	if snap.Host != "" && !strings.EqualFold(strings.TrimSpace(snap.Host), strings.TrimSpace(host)) {
		return nil, file, fmt.Errorf("snapshot %s describes host %q, not %q", file, snap.Host, host)
	}
	if err := snap.checkUniqueSIDs(); err != nil {
		return nil, file, fmt.Errorf("snapshot %s: %w", file, err)
	}
	return &snap, file, nil
}

// checkUniqueSIDs rejects snapshots where two entries fold to the same SID.
func (s *Snapshot) checkUniqueSIDs() error {
	seen := make(map[string]string, len(s.Profiles))
	for _, entry := range s.Profiles {
		sid := strings.TrimSpace(entry.SID)
		if sid == "" {
			continue
		}
		key := policy.Fold(sid)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("duplicate sid %s (%s and %s)", sid, prev, entry.Path)
		}
		seen[key] = entry.Path
	}
	return nil
}

// indexOf finds the entry for profile by SID, and by path when the record carries one.
func (s *Snapshot) indexOf(profile domain.ProfileRecord) int {
	sid := policy.Fold(strings.TrimSpace(profile.SecurityID))
	path := strings.TrimSpace(profile.StoragePath)
	for i, entry := range s.Profiles {
		if policy.Fold(strings.TrimSpace(entry.SID)) != sid {
			continue
		}
		if path != "" && filepath.Clean(strings.TrimSpace(entry.Path)) != filepath.Clean(path) {
			continue
		}
		return i
	}
	return -1
}

func (s *SnapshotInventory) filesystem(root string) domain.FileSystemManager {
	if s.fs != nil {
		return s.fs
	}
	if root != "" {
		return NewFileSystemManagerWithRoot(root)
	}
	return NewFileSystemManager()
}

// activeUsers is only meaningful when the snapshot describes this machine.
func (s *SnapshotInventory) activeUsers(host string) map[string]bool {
	if s.probe == nil {
		return nil
	}
	hostname, _ := s.hostname()
	if !isLocalHost(host, hostname) {
		return nil
	}
	users, err := s.probe.ActiveUsers()
	if err != nil {
		s.logger.Warn("failed to probe active users", zap.Error(err))
		return nil
	}
	return users
}

func (p SnapshotProfile) toProfileRecord() (domain.ProfileRecord, bool) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = ProfileNameFromPath(p.Path)
	}
	sid := strings.TrimSpace(p.SID)
	if name == "" || sid == "" {
		return domain.ProfileRecord{}, false
	}

	record := domain.ProfileRecord{
		Name:        name,
		SecurityID:  sid,
		StoragePath: strings.TrimSpace(p.Path),
		IsLoaded:    p.Loaded,
	}
	if t, ok := parseLastUse(p.LastUse); ok {
		record.LastUseTime = &t
	}
	return record, true
}

// parseLastUse accepts RFC 3339, a few plain layouts and CIM DATETIME.
func parseLastUse(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range lastUseLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if t, err := ParseCIMDateTime(value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// WriteSnapshot stores snap at path atomically.
func WriteSnapshot(path string, snap *Snapshot) error {
	return atomicWriteYAML(path, snap)
}

// atomicWriteYAML writes to a temp file then renames it over path.
func atomicWriteYAML(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0600)
}

// atomicWriteFile replaces path through a temp file in the same directory.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// SnapshotFromProfiles builds a snapshot document for host.
func SnapshotFromProfiles(host string, profiles []domain.ProfileRecord) *Snapshot {
	snap := &Snapshot{Host: host, Profiles: make([]SnapshotProfile, 0, len(profiles))}
	for _, p := range profiles {
		entry := SnapshotProfile{Name: p.Name, SID: p.SecurityID, Path: p.StoragePath, Loaded: p.IsLoaded}
		if p.LastUseTime != nil {
			entry.LastUse = p.LastUseTime.Format(time.RFC3339)
		}
		snap.Profiles = append(snap.Profiles, entry)
	}
	return snap
}

// Ensure SnapshotInventory implements domain.InventorySource.
var _ domain.InventorySource = (*SnapshotInventory)(nil)
