package infra

import (
	"strings"

	"github.com/eliteGoblin/profprune/internal/domain"
)

var sessionStates = [...]string{
	"Active", "Connected", "ConnectQuery", "Shadow", "Disconnected",
	"Idle", "Listen", "Reset", "Down", "Init",
}

// sessionStateName maps a WTS_CONNECTSTATE_CLASS value to its name.
func sessionStateName(state uint32) string {
	if int(state) < len(sessionStates) {
		return sessionStates[state]
	}
	return "Unknown"
}

// qualifiedUser joins domain and user the way Windows displays them.
func qualifiedUser(domainName, user string) string {
	if user == "" {
		return ""
	}
	if domainName == "" {
		return user
	}
	return domainName + `\` + user
}

// MatchesAccount reports whether a session user (plain or DOMAIN\user)
// is the account named user. Comparison is on the account part, case-insensitive.
func MatchesAccount(sessionUser, user string) bool {
	account := AccountName(strings.TrimSpace(sessionUser))
	want := AccountName(strings.TrimSpace(user))
	return account != "" && strings.EqualFold(account, want)
}

// SessionsForUser returns IDs of interactive sessions owned by user.
// Session 0 hosts services and is never returned.
func SessionsForUser(sessions []domain.Session, user string) []uint32 {
	var ids []uint32
	for _, s := range sessions {
		if s.ID == 0 {
			continue
		}
		if MatchesAccount(s.UserName, user) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
