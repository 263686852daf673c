//go:build !windows

package infra

import "os"

func isElevated() bool {
	return os.Geteuid() == 0
}
