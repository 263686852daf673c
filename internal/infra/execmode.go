package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// ExecMode represents the privilege level profprune runs with.
type ExecMode string

const (
	// ExecModeUser runs without administrator rights (dry runs, history, list)
	ExecModeUser ExecMode = "user"
	// ExecModeElevated runs as administrator / root (required to delete profiles)
	ExecModeElevated ExecMode = "elevated"
)

const appDirName = "profprune"

// ExecModeConfig holds default paths based on execution mode.
type ExecModeConfig struct {
	Mode     ExecMode
	DataDir  string // Where the run history database and key live
	LogDir   string // Where per-session audit logs are written
	Elevated bool
}

// DetectExecMode determines the execution mode from the process token.
func DetectExecMode() *ExecModeConfig {
	return execModeConfig(isElevated(), runtime.GOOS)
}

func execModeConfig(elevated bool, goos string) *ExecModeConfig {
	var dataDir string
	switch {
	case goos == "windows" && elevated:
		programData := os.Getenv("ProgramData")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		dataDir = filepath.Join(programData, appDirName)
	case goos == "windows":
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = GetRealUserHome()
		}
		dataDir = filepath.Join(configDir, appDirName)
	case elevated:
		dataDir = filepath.Join("/var/lib", appDirName)
	default:
		dataDir = filepath.Join(GetRealUserHome(), "."+appDirName)
	}

	mode := ExecModeUser
	if elevated {
		mode = ExecModeElevated
	}

	return &ExecModeConfig{
		Mode:     mode,
		DataDir:  dataDir,
		LogDir:   filepath.Join(dataDir, "logs"),
		Elevated: elevated,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeElevated:
		return "elevated (administrator)"
	case ExecModeUser:
		return "user (not elevated)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
