package infra

import (
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/profprune/internal/domain"
)

const (
	// DefaultWMINamespace holds Win32_UserProfile.
	DefaultWMINamespace = `root\cimv2`

	profileQueryWhere = "WHERE Special = FALSE"
)

// win32UserProfile mirrors the Win32_UserProfile columns we read.
// Pointer fields stay nil when the provider returns NULL.
type win32UserProfile struct {
	SID         string
	LocalPath   *string
	LastUseTime *string
	Loaded      *bool
}

// toProfileRecord converts a WMI row. ok is false when no name can be
// derived from LocalPath; such rows are dropped from the inventory.
func (w win32UserProfile) toProfileRecord() (domain.ProfileRecord, bool) {
	var path string
	if w.LocalPath != nil {
		path = strings.TrimSpace(*w.LocalPath)
	}
	name := ProfileNameFromPath(path)
	if name == "" || strings.TrimSpace(w.SID) == "" {
		return domain.ProfileRecord{}, false
	}

	record := domain.ProfileRecord{
		Name:        name,
		SecurityID:  strings.TrimSpace(w.SID),
		StoragePath: path,
	}
	if w.LastUseTime != nil {
		if t, err := ParseCIMDateTime(*w.LastUseTime); err == nil {
			record.LastUseTime = &t
		}
	}
	if w.Loaded != nil {
		record.IsLoaded = *w.Loaded
	}
	return record, true
}

// ProfileNameFromPath returns the last segment of a Windows or POSIX path.
func ProfileNameFromPath(path string) string {
	path = strings.TrimRight(strings.TrimSpace(path), `\/`)
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		path = path[i+1:]
	}
	// A bare drive ("C:") has no profile name.
	if strings.HasSuffix(path, ":") {
		return ""
	}
	return path
}

// ParseCIMDateTime parses a CIM DATETIME value: yyyymmddHHMMSS.mmmmmmsUUU,
// where sUUU is the UTC offset in minutes. Wildcard ('*') fields are rejected.
func ParseCIMDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) != 25 || value[14] != '.' {
		return time.Time{}, &time.ParseError{Layout: "yyyymmddHHMMSS.mmmmmmsUUU", Value: value, Message: ": wrong length"}
	}

	base, err := time.Parse("20060102150405", value[:14])
	if err != nil {
		return time.Time{}, err
	}

	micros, err := strconv.Atoi(value[15:21])
	if err != nil {
		return time.Time{}, err
	}

	sign := value[21]
	if sign != '+' && sign != '-' {
		return time.Time{}, &time.ParseError{Layout: "sUUU", Value: value, Message: ": bad offset sign"}
	}
	offset, err := strconv.Atoi(value[22:25])
	if err != nil {
		return time.Time{}, err
	}
	if sign == '-' {
		offset = -offset
	}

	zone := time.FixedZone("", offset*60)
	return time.Date(base.Year(), base.Month(), base.Day(), base.Hour(), base.Minute(), base.Second(),
		micros*int(time.Microsecond), zone), nil
}

// profileObjectPath is the WMI object path that binds one profile instance.
func profileObjectPath(sid string) string {
	return "Win32_UserProfile.SID='" + strings.ReplaceAll(sid, "'", "") + "'"
}

// connectHost maps loopback names to the local WMI connection.
func connectHost(host string) string {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "", ".", "localhost", "127.0.0.1", "::1":
		return "."
	}
	return host
}

// isLocalHost reports whether host names this machine.
func isLocalHost(host string, hostname string) bool {
	if connectHost(host) == "." {
		return true
	}
	return hostname != "" && strings.EqualFold(strings.TrimSpace(host), hostname)
}
