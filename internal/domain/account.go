package domain

// AccountRole distinguishes the consolidation target from swept accounts.
type AccountRole string

const (
	RoleMain AccountRole = "main"
	RoleSub  AccountRole = "sub"
)

// Credential is the API key pair used by the venue gateway for an account.
// The sweep engine passes it through without inspecting it.
type Credential struct {
	APIKey    string
	APISecret string
}

// Account addresses a venue sub-ledger. Accounts are built once from
// configuration and never change while the process runs.
type Account struct {
	UID        string
	Role       AccountRole
	Credential Credential
}

// IsMain reports whether the account is the sweep destination.
func (a Account) IsMain() bool {
	return a.Role == RoleMain
}
