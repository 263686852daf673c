// Package infra implements infrastructure concerns (inventory, audit log, run store, console).
package infra

import (
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/profprune/internal/domain"
	"github.com/eliteGoblin/profprune/internal/policy"
)

// ProcessSessionProbe implements domain.SessionProbe using gopsutil.
// An account owning at least one live process has its profile loaded.
type ProcessSessionProbe struct{}

// NewProcessSessionProbe creates a new session probe.
func NewProcessSessionProbe() domain.SessionProbe {
	return &ProcessSessionProbe{}
}

// ActiveUsers returns folded account names (domain prefix stripped) that own processes.
func (p *ProcessSessionProbe) ActiveUsers() (map[string]bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	users := make(map[string]bool)
	for _, proc := range procs {
		name, err := proc.Username()
		if err != nil || name == "" {
			continue // Process may have exited or be protected
		}
		users[policy.Fold(AccountName(name))] = true
	}
	return users, nil
}

// AccountName strips a "DOMAIN\" prefix.
func AccountName(qualified string) string {
	if idx := strings.LastIndex(qualified, `\`); idx >= 0 {
		return qualified[idx+1:]
	}
	return qualified
}

// Workstation describes the machine the operator runs profprune from.
type Workstation struct {
	Hostname string
	Platform string
	Operator string
}

// DetectWorkstation reads host metadata for the audit history.
func DetectWorkstation() Workstation {
	ws := Workstation{}
	if info, err := host.Info(); err == nil {
		ws.Hostname = info.Hostname
		ws.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	}
	if ws.Hostname == "" {
		ws.Hostname, _ = os.Hostname()
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if name, err := p.Username(); err == nil {
			ws.Operator = name
		}
	}
	return ws
}

// Ensure ProcessSessionProbe implements domain.SessionProbe.
var _ domain.SessionProbe = (*ProcessSessionProbe)(nil)
