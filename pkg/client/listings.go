package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/avitolog/avitolog/pkg/domain"
)

const (
	// DefaultSort ranks listings by view count.
	DefaultSort = "views"
	// DefaultLimit is the page size used when none is given.
	DefaultLimit = 10
)

// ListingEnvelope wraps a single listing, as returned by ingest and get.
type ListingEnvelope struct {
	Listing *domain.Listing `json:"listing"`
}

// ListingPage is a ranked page of listings.
type ListingPage struct {
	Items []domain.Listing `json:"items"`
	Total int              `json:"total,omitempty"`
}

// TopListingsParams selects the ranking. Zero values fall back to
// DefaultSort and DefaultLimit.
type TopListingsParams struct {
	Sort  string
	Limit int
}

func (p TopListingsParams) values() url.Values {
	sort := p.Sort
	if sort == "" {
		sort = DefaultSort
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := url.Values{}
	params.Set("sort", sort)
	params.Set("limit", strconv.Itoa(limit))
	return params
}

// IngestListing submits an external listing URL for ingestion.
func (c *Client) IngestListing(ctx context.Context, listingURL string) (*ListingEnvelope, error) {
	var env ListingEnvelope
	if err := c.post(ctx, "/listings/ingest", map[string]string{"url": listingURL}, &env); err != nil {
		return nil, fmt.Errorf("client.IngestListing: %w", err)
	}
	return &env, nil
}

// GetTopListings returns listings ranked by params.
func (c *Client) GetTopListings(ctx context.Context, params TopListingsParams) (*ListingPage, error) {
	var page ListingPage
	if err := c.get(ctx, "/listings", params.values(), &page); err != nil {
		return nil, fmt.Errorf("client.GetTopListings: %w", err)
	}
	return &page, nil
}

// GetListingByID fetches a single listing.
func (c *Client) GetListingByID(ctx context.Context, id domain.ID) (*ListingEnvelope, error) {
	var env ListingEnvelope
	if err := c.get(ctx, "/listings/"+url.PathEscape(id.String()), nil, &env); err != nil {
		return nil, fmt.Errorf("client.GetListingByID: %w", err)
	}
	return &env, nil
}
