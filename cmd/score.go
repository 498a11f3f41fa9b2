package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scorer/internal/ingest"
)

var scoreCmd = &cobra.Command{
	Use:   "score <file.csv|file.tsv|file.xlsx>",
	Short: "Score a spreadsheet of ideas",
	Long:  "Reads an idea spreadsheet, runs the scoring pipeline, and prints the ranked leaderboard.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		weightsPath, _ := cmd.Flags().GetString("weights")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")
		noExplain, _ := cmd.Flags().GetBool("no-explain")

		if !validFormat(format) {
			return eris.Errorf("score: unknown format %q (table, json, csv)", format)
		}
		if noExplain {
			cfg.Explain.Enabled = false
		}
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		sc, err := buildPipeline(cfg, weightsPath)
		if err != nil {
			return eris.Wrap(err, "score: build pipeline")
		}

		records, err := ingest.ReadFile(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "score: read input")
		}

		batch, runErr := sc.pipeline.Run(ctx, records, sc.weights)
		batch.Source = filepath.Base(args[0])
		if sc.spend != nil {
			spent := sc.spend.Total()
			zap.L().Info("score: explanation usage",
				zap.String("batch_id", batch.ID),
				zap.Int("calls", spent.Calls),
				zap.Int64("input_tokens", spent.InputTokens),
				zap.Int64("output_tokens", spent.OutputTokens),
				zap.Float64("estimated_cost_usd", spent.USD),
			)
		}

		if save {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.SaveBatch(ctx, batch); err != nil {
				return eris.Wrap(err, "score: save batch")
			}
			zap.L().Info("score: batch saved", zap.String("batch_id", batch.ID))
		}
		if runErr != nil {
			return runErr
		}

		var out io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "score: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeBatch(out, batch, format)
	},
}

func init() {
	scoreCmd.Flags().String("weights", "", "YAML weight file (defaults to the config file's weights, then built-in weights)")
	scoreCmd.Flags().String("format", formatTable, "output format: table, json, csv")
	scoreCmd.Flags().StringP("output", "o", "", "write results to a file instead of stdout")
	scoreCmd.Flags().Bool("save", false, "persist the batch to the configured store")
	scoreCmd.Flags().Bool("no-explain", false, "skip the explanation stage")
	rootCmd.AddCommand(scoreCmd)
}
