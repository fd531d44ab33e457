package domain

// User is the profile of an account as returned by the auth endpoints.
type User struct {
	ID        ID        `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt Timestamp `json:"created_at,omitzero"`
}

// DisplayName returns the email when known, else the name.
func (u User) DisplayName() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Name
}
