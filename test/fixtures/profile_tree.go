// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/profprune/internal/infra"
)

// FakeProfile describes one profile directory to create.
type FakeProfile struct {
	Name    string
	SID     string
	LastUse string
	Loaded  bool
	// Outside places the directory beside the profile root instead of under it.
	Outside bool
}

// FakeProfileTree creates a directory tree mimicking C:\Users plus a snapshot describing it.
type FakeProfileTree struct {
	BaseDir  string
	Host     string
	Profiles []FakeProfile
}

// NewFakeProfileTree creates a new fake profile tree generator.
func NewFakeProfileTree(baseDir, host string, profiles ...FakeProfile) *FakeProfileTree {
	return &FakeProfileTree{BaseDir: baseDir, Host: host, Profiles: profiles}
}

// Root is the directory holding the profile folders.
func (f *FakeProfileTree) Root() string {
	return filepath.Join(f.BaseDir, "Users")
}

// SnapshotPath is where Create writes the inventory snapshot.
func (f *FakeProfileTree) SnapshotPath() string {
	return filepath.Join(f.BaseDir, f.Host+".yaml")
}

// PathOf returns the directory of the named profile.
func (f *FakeProfileTree) PathOf(name string) string {
	for _, p := range f.Profiles {
		if p.Name == name && p.Outside {
			return filepath.Join(f.BaseDir, "elsewhere", name)
		}
	}
	return filepath.Join(f.Root(), name)
}

// Create builds the profile directories and writes the snapshot.
func (f *FakeProfileTree) Create() error {
	snap := &infra.Snapshot{Host: f.Host, Root: f.Root()}

	for _, p := range f.Profiles {
		dir := f.PathOf(p.Name)
		for _, sub := range []string{"Desktop", "Documents", filepath.Join("AppData", "Local", "Temp")} {
			if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
				return err
			}
		}
		// Marker standing in for the registry hive
		if err := os.WriteFile(filepath.Join(dir, "NTUSER.DAT"), []byte(fmt.Sprintf("hive of %s", p.Name)), 0644); err != nil {
			return err
		}
		snap.Profiles = append(snap.Profiles, infra.SnapshotProfile{
			SID:     p.SID,
			Path:    dir,
			LastUse: p.LastUse,
			Loaded:  p.Loaded,
		})
	}

	if err := os.MkdirAll(f.Root(), 0755); err != nil {
		return err
	}
	return infra.WriteSnapshot(f.SnapshotPath(), snap)
}

// Exists reports whether the named profile directory is still present.
func (f *FakeProfileTree) Exists(name string) bool {
	_, err := os.Stat(f.PathOf(name))
	return err == nil
}
