package domain

// Author is the public part of a comment author's profile.
type Author struct {
	ID    ID     `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// DisplayName returns email, name, or a placeholder for anonymous authors.
func (a Author) DisplayName() string {
	switch {
	case a.Email != "":
		return a.Email
	case a.Name != "":
		return a.Name
	default:
		return "anonymous"
	}
}

// Comment is a comment on a listing.
// IsOwner is nil when the backend did not report ownership.
type Comment struct {
	ID        ID        `json:"id"`
	ListingID ID        `json:"listing_id,omitempty"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt Timestamp `json:"created_at,omitzero"`
	UpdatedAt Timestamp `json:"updated_at,omitzero"`
	IsOwner   *bool     `json:"is_owner,omitempty"`
}
