package domain

import (
	"strings"
	"time"
)

// TimeLayout is used for last-use timestamps in logs and reports.
const TimeLayout = "2006-01-02 15:04"

// FormatLastUse renders an optional timestamp, "-" when unknown.
func FormatLastUse(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(TimeLayout)
}

// FormatProfile renders a profile as a tab-separated line:
// name, SID, path, last use, loaded.
func FormatProfile(p ProfileRecord) string {
	loaded := "no"
	if p.IsLoaded {
		loaded = "yes"
	}
	return strings.Join([]string{p.Name, p.SecurityID, p.StoragePath, FormatLastUse(p.LastUseTime), loaded}, "\t")
}

// FormatResult renders a removal result as a tab-separated line:
// name, SID, action, reason.
func FormatResult(r RemovalResult) string {
	return strings.Join([]string{r.Profile.Name, r.Profile.SecurityID, string(r.Action), r.Reason.String()}, "\t")
}
