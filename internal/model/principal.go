package model

// Role distinguishes document owners from center operators at the API boundary.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleOperator Role = "operator"
)

// Principal is the caller identity supplied by the account service.
// The zero value is an anonymous caller.
type Principal struct {
	AccountID string
	Role      Role
	Name      string
	Email     string
	Phone     string
}

// Authenticated reports whether the principal carries an account.
func (p Principal) Authenticated() bool {
	return p.AccountID != ""
}

// IsOperator reports whether the principal operates a center.
func (p Principal) IsOperator() bool {
	return p.Authenticated() && p.Role == RoleOperator
}

// IsOwner reports whether the principal is a document owner account.
func (p Principal) IsOwner() bool {
	return p.Authenticated() && p.Role == RoleOwner
}
