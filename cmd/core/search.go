package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/milli-core/pkg/indexcore"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search an index",
}

var searchQueryCmd = &cobra.Command{
	Use:   "query Q",
	Short: "Run a search query and print the hits as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		filter, _ := cmd.Flags().GetString("filter")
		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")
		budgetMs, _ := cmd.Flags().GetInt("budget-ms")
		sort, _ := cmd.Flags().GetStringSlice("sort")

		ix, err := openIndex(cfg, true)
		if err != nil {
			return err
		}
		defer ix.Close()

		req := indexcore.SearchRequest{
			Query:  args[0],
			Filter: filter,
			Sort:   sort,
			Offset: offset,
			Limit:  limit,
		}
		if budgetMs > 0 {
			req.Budget = time.Duration(budgetMs) * time.Millisecond
		}

		result, err := ix.Search(req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if result.Degraded {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: search exceeded its time budget, results may be incomplete")
		}
		return nil
	},
}

func init() {
	searchQueryCmd.Flags().String("filter", "", "Filter expression")
	searchQueryCmd.Flags().Int("offset", 0, "Result offset")
	searchQueryCmd.Flags().Int("limit", 20, "Result limit")
	searchQueryCmd.Flags().Int("budget-ms", 0, "Time budget in milliseconds (0 = unlimited)")
	searchQueryCmd.Flags().StringSlice("sort", nil, "Sort clauses (field:asc or field:desc)")
	searchCmd.AddCommand(searchQueryCmd)
}
