package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/avitolog/avitolog/pkg/domain"
)

// CommentPage is the comment thread of a listing.
type CommentPage struct {
	Items []domain.Comment `json:"items"`
}

type commentBody struct {
	Content string `json:"content"`
}

// GetComments returns the comments of a listing in backend order.
func (c *Client) GetComments(ctx context.Context, listingID domain.ID) (*CommentPage, error) {
	var page CommentPage
	if err := c.get(ctx, "/listings/"+url.PathEscape(listingID.String())+"/comments", nil, &page); err != nil {
		return nil, fmt.Errorf("client.GetComments: %w", err)
	}
	return &page, nil
}

// CreateComment posts a comment on a listing. Requires a token.
func (c *Client) CreateComment(ctx context.Context, listingID domain.ID, content string) (*domain.Comment, error) {
	var created domain.Comment
	if err := c.post(ctx, "/listings/"+url.PathEscape(listingID.String())+"/comments", commentBody{Content: content}, &created); err != nil {
		return nil, fmt.Errorf("client.CreateComment: %w", err)
	}
	return &created, nil
}

// UpdateComment replaces a comment's content. The backend only allows the owner.
func (c *Client) UpdateComment(ctx context.Context, commentID domain.ID, content string) (*domain.Comment, error) {
	var updated domain.Comment
	if err := c.doRequest(ctx, http.MethodPatch, "/comments/"+url.PathEscape(commentID.String()), nil, commentBody{Content: content}, &updated); err != nil {
		return nil, fmt.Errorf("client.UpdateComment: %w", err)
	}
	return &updated, nil
}

// DeleteComment removes a comment. The backend only allows the owner.
func (c *Client) DeleteComment(ctx context.Context, commentID domain.ID) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/comments/"+url.PathEscape(commentID.String()), nil, nil, nil); err != nil {
		return fmt.Errorf("client.DeleteComment: %w", err)
	}
	return nil
}
