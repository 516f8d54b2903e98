package directory

// TierFree is the subscription tier assigned to every newly created account.
const TierFree = "free"

// User represents an account record owned by the directory service.
// Password holds the bcrypt hash of the account secret and is empty for
// OAuth-only accounts. GoogleID is empty for password-only accounts.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Password         string `json:"password,omitempty"`
	Firstname        string `json:"firstname"`
	Lastname         string `json:"lastname"`
	SubscriptionTier string `json:"subscriptionTier"`
	GoogleID         string `json:"googleId,omitempty"`
}

// Sanitized returns a copy of the user with the password hash stripped.
// Every value that leaves this service goes through Sanitized first.
func (u User) Sanitized() User {
	u.Password = ""
	return u
}

// UserPatch holds the mutable fields for a partial directory update.
type UserPatch struct {
	GoogleID string `json:"googleId,omitempty"`
}
