package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/pkg/domain"
)

// Comments prints the comment thread of a listing, marking the caller's own.
func (r *Runner) Comments(ctx context.Context, cmd *cli.Command) error {
	id, err := argAt(cmd, 0, "listing id")
	if err != nil {
		return err
	}
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	page, err := r.client.GetComments(ctx, domain.ID(id))
	if err != nil {
		return fail(err, "Could not load comments")
	}
	if cmd.Bool("json") {
		return r.writeJSON(page)
	}
	if len(page.Items) == 0 {
		return r.writePlain("No comments yet.\n")
	}
	snap := r.session.Snapshot()
	for _, c := range page.Items {
		r.printComment(c, session.CanEdit(c, snap))
	}
	return nil
}

// CommentAdd posts a comment. Requires a login.
func (r *Runner) CommentAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := argAt(cmd, 0, "listing id")
	if err != nil {
		return err
	}
	text := textFrom(cmd, 1)
	if text == "" {
		return fmt.Errorf("comment text is empty")
	}
	if err := r.requireLogin(ctx, cmd); err != nil {
		return err
	}
	c, err := r.client.CreateComment(ctx, domain.ID(id), text)
	if err != nil {
		return fail(err, "Could not post the comment")
	}
	return r.printMutation(cmd, c, "Posted comment #%s\n")
}

// CommentEdit replaces the text of one of the caller's comments.
func (r *Runner) CommentEdit(ctx context.Context, cmd *cli.Command) error {
	id, err := argAt(cmd, 0, "comment id")
	if err != nil {
		return err
	}
	text := textFrom(cmd, 1)
	if text == "" {
		return fmt.Errorf("comment text is empty")
	}
	if err := r.requireLogin(ctx, cmd); err != nil {
		return err
	}
	c, err := r.client.UpdateComment(ctx, domain.ID(id), text)
	if err != nil {
		return fail(err, "Could not update the comment")
	}
	return r.printMutation(cmd, c, "Updated comment #%s\n")
}

// CommentDelete removes one of the caller's comments.
func (r *Runner) CommentDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := argAt(cmd, 0, "comment id")
	if err != nil {
		return err
	}
	if err := r.requireLogin(ctx, cmd); err != nil {
		return err
	}
	if err := r.client.DeleteComment(ctx, domain.ID(id)); err != nil {
		return fail(err, "Could not delete the comment")
	}
	return r.writePlain("Deleted comment #%s\n", id)
}

func (r *Runner) requireLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	if r.session.State() != session.Authenticated {
		return errNotLoggedIn
	}
	return nil
}

func (r *Runner) printMutation(cmd *cli.Command, c *domain.Comment, format string) error {
	if cmd.Bool("json") {
		return r.writeJSON(c)
	}
	if c == nil {
		return r.writePlain("Done.\n")
	}
	return r.writePlain(format, c.ID)
}

func (r *Runner) printComment(c domain.Comment, own bool) {
	header := fmt.Sprintf("#%s %s", c.ID, c.Author.DisplayName())
	if own {
		header += " (you)"
	}
	if !c.CreatedAt.IsZero() {
		header += " · " + c.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	r.writePlain("%s\n", headerStyle.Render(header)) //nolint:errcheck
	for _, line := range strings.Split(c.Content, "\n") {
		r.writePlain("  %s\n", line) //nolint:errcheck
	}
}
