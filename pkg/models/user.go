package models

// User is the acting identity resolved by the auth layer. Permissions are
// capability strings such as "lead:update_own".
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Can reports whether the user holds the given capability.
func (u User) Can(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
