package auth

// Capability strings consumed by the conversion validator. "own" scopes
// apply when the acting user created or is assigned the entity; "any" scopes
// bypass the ownership check.
const (
	PermLeadUpdateOwn = "lead:update_own"
	PermLeadUpdateAny = "lead:update_any"
	PermDealUpdateOwn = "deal:update_own"
	PermDealUpdateAny = "deal:update_any"
)

// DefaultPermissions is granted to every authenticated user; admin scopes
// come from the token.
var DefaultPermissions = []string{
	PermLeadUpdateOwn,
	PermDealUpdateOwn,
}

// AdminPermissions is the full capability set, used by the dev bypass and
// the MCP service account.
var AdminPermissions = []string{
	PermLeadUpdateOwn,
	PermLeadUpdateAny,
	PermDealUpdateOwn,
	PermDealUpdateAny,
}
