package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/avitolog/avitolog/pkg/client"
	"github.com/avitolog/avitolog/pkg/domain"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// argAt returns the i-th positional argument or a usage error naming it.
func argAt(cmd *cli.Command, i int, name string) (string, error) {
	v := strings.TrimSpace(cmd.Args().Get(i))
	if v == "" {
		return "", fmt.Errorf("missing %s, usage: avitolog %s %s", name, cmd.Name, cmd.ArgsUsage)
	}
	return v, nil
}

// textFrom joins the positional arguments from i on.
func textFrom(cmd *cli.Command, i int) string {
	args := cmd.Args().Slice()
	if i >= len(args) {
		return ""
	}
	return strings.TrimSpace(strings.Join(args[i:], " "))
}

// Ingest submits a listing URL and prints the normalized listing.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	rawURL, err := argAt(cmd, 0, "url")
	if err != nil {
		return err
	}
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	env, err := r.client.IngestListing(ctx, rawURL)
	if err != nil {
		return fail(err, "Could not add the listing")
	}
	if env.Listing == nil || env.Listing.ID.IsZero() {
		return fmt.Errorf("the listing was accepted but no id came back")
	}
	if cmd.Bool("json") {
		return r.writeJSON(env.Listing)
	}
	return r.printListing(*env.Listing)
}

// Top prints listings ranked by views.
func (r *Runner) Top(ctx context.Context, cmd *cli.Command) error {
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	page, err := r.client.GetTopListings(ctx, client.TopListingsParams{
		Sort:  cmd.String("sort"),
		Limit: int(cmd.Int("limit")),
	})
	if err != nil {
		return fail(err, "Could not load listings")
	}
	if cmd.Bool("json") {
		return r.writeJSON(page)
	}
	if len(page.Items) == 0 {
		return r.writePlain("No listings yet.\n")
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("ID", "VIEWS", "TITLE")
	for _, l := range page.Items {
		t.Row(l.ID.String(), strconv.Itoa(l.ViewCount), l.DisplayTitle())
	}
	return r.writePlain("%s\n", t.String())
}

// Show prints one listing. Each fetch counts as a view on the backend.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	id, err := argAt(cmd, 0, "listing id")
	if err != nil {
		return err
	}
	if err := r.bootstrap(ctx, cmd); err != nil {
		return err
	}
	env, err := r.client.GetListingByID(ctx, domain.ID(id))
	switch {
	case client.IsStatus(err, 404):
		return fail(err, "Listing not found")
	case err != nil:
		return fail(err, "Could not load the listing")
	case env.Listing == nil:
		return fmt.Errorf("listing not found")
	}
	if cmd.Bool("json") {
		return r.writeJSON(env.Listing)
	}
	return r.printListing(*env.Listing)
}

func (r *Runner) printListing(l domain.Listing) error {
	if err := r.writePlain("%s %s\n", headerStyle.Render("#"+l.ID.String()), l.DisplayTitle()); err != nil {
		return err
	}
	if err := r.writePlain("  %s\n  %d views\n", l.URL, l.ViewCount); err != nil {
		return err
	}
	if l.ImageURL != "" {
		return r.writePlain("  image: %s\n", l.ImageURL)
	}
	return nil
}
