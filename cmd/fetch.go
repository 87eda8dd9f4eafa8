package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/aidfeed/internal/domain/model"
	"github.com/okian/aidfeed/pkg/logger"
	"github.com/spf13/cobra"
)

type fetchOutput struct {
	Listings []model.Listing `json:"listings"`
	Count    int             `json:"count"`
}

func newFetchCmd(c *cli) *cobra.Command {
	var region, category string
	var strict bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Aggregate once and print the merged listings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.fetch(cmd.Context(), cmd.OutOrStdout(), region, category, strict)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "only listings eligible in this region")
	cmd.Flags().StringVar(&category, "category", "", "only listings in this category")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when every source fails instead of printing an empty feed")
	return cmd
}

func (c *cli) fetch(ctx context.Context, out io.Writer, region, category string, strict bool) error {
	log := logger.Get()
	svc, closeCache, err := buildService(ctx, c.cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeCache() }()

	listings, err := svc.Refresh(ctx, model.NewKey(region, category), !strict)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(fetchOutput{Listings: listings, Count: len(listings)})
}
