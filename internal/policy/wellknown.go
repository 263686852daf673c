package policy

// Well-known local service identities. Their profiles are never eligible
// for removal.
const (
	SIDLocalSystem    = "S-1-5-18"
	SIDLocalService   = "S-1-5-19"
	SIDNetworkService = "S-1-5-20"
)

var wellKnownAccounts = map[string]string{
	SIDLocalSystem:    "SYSTEM",
	SIDLocalService:   "LOCAL SERVICE",
	SIDNetworkService: "NETWORK SERVICE",
}

var wellKnownSet = NewFoldSet(SIDLocalSystem, SIDLocalService, SIDNetworkService)

// IsSystemAccount reports whether sid is one of the reserved local service identities.
func IsSystemAccount(sid string) bool {
	return wellKnownSet.Has(sid)
}

// WellKnownAccounts returns SID -> account name for the reserved identities.
func WellKnownAccounts() map[string]string {
	accounts := make(map[string]string, len(wellKnownAccounts))
	for sid, name := range wellKnownAccounts {
		accounts[sid] = name
	}
	return accounts
}
