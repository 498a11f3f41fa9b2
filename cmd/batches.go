package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/store"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect saved batches",
	Long:  "Commands for listing saved batches, viewing one, and querying scored ideas across batches.",
}

// -- batches list --

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved batches, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		batches, err := st.ListBatches(ctx, store.BatchFilter{
			State:  model.BatchState(state),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "batches list")
		}
		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		formatBatchesList(os.Stdout, batches)
		return nil
	},
}

// -- batches show --

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show a saved batch and its leaderboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if !validFormat(format) {
			return eris.Errorf("batches show: unknown format %q (table, json, csv)", format)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batch, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "batches show")
		}
		return writeBatch(os.Stdout, batch, format)
	},
}

// -- batches ideas --

var batchesIdeasCmd = &cobra.Command{
	Use:   "ideas [batch-id]",
	Short: "Query scored ideas, optionally within one batch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := store.IdeaFilter{}
		if len(args) == 1 {
			filter.BatchID = args[0]
		}
		filter.MinScore, _ = cmd.Flags().GetInt("min-score")
		filter.Industry, _ = cmd.Flags().GetString("industry")
		tier, _ := cmd.Flags().GetString("tier")
		filter.Tier = model.Tier(tier)
		filter.Flag, _ = cmd.Flags().GetString("flag")
		filter.Sort, _ = cmd.Flags().GetString("sort")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		filter.Offset, _ = cmd.Flags().GetInt("offset")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ideas, err := st.ListIdeas(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "batches ideas")
		}
		if asJSON {
			if ideas == nil {
				ideas = []store.StoredIdea{}
			}
			return writeJSON(os.Stdout, ideas)
		}
		if len(ideas) == 0 {
			fmt.Fprintln(os.Stderr, "No ideas found.")
			return nil
		}
		formatStoredIdeas(os.Stdout, ideas)
		return nil
	},
}

func init() {
	batchesListCmd.Flags().String("state", "", "filter by batch state (COMPLETE, FAILED, ...)")
	batchesListCmd.Flags().Int("limit", 50, "max number of batches to display")
	batchesListCmd.Flags().Int("offset", 0, "number of batches to skip")

	batchesShowCmd.Flags().String("format", formatTable, "output format: table, json, csv")

	batchesIdeasCmd.Flags().Int("min-score", 0, "only ideas scoring at least this much")
	batchesIdeasCmd.Flags().String("industry", "", "filter by industry (case-insensitive)")
	batchesIdeasCmd.Flags().String("tier", "", "filter by tier (high, medium, low)")
	batchesIdeasCmd.Flags().String("flag", "", "only ideas carrying this risk flag")
	batchesIdeasCmd.Flags().String("sort", store.SortRank, "order: rank, score, name")
	batchesIdeasCmd.Flags().Int("limit", 100, "max number of ideas to display")
	batchesIdeasCmd.Flags().Int("offset", 0, "number of ideas to skip")
	batchesIdeasCmd.Flags().Bool("json", false, "print JSON instead of a table")

	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesShowCmd)
	batchesCmd.AddCommand(batchesIdeasCmd)
	rootCmd.AddCommand(batchesCmd)
}
