package domain

// Listing is a normalized marketplace listing produced by ingestion.
type Listing struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"image_url,omitempty"`
	ViewCount int       `json:"view_count"`
	CreatedAt Timestamp `json:"created_at,omitzero"`
}

// DisplayTitle falls back to the URL for listings whose title could not be parsed.
func (l Listing) DisplayTitle() string {
	if l.Title != "" {
		return l.Title
	}
	return l.URL
}
