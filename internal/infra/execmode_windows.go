//go:build windows

package infra

import "golang.org/x/sys/windows"

// isElevated reports whether the process token carries full administrator rights.
func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
