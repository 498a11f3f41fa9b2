package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/idea-scorer/internal/criteria"
	"github.com/sells-group/idea-scorer/internal/weights"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Work with criterion weight configurations",
}

var weightsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a weight configuration",
	Long:  "Validates the weight file (or the configured weights) against the registered criteria and prints the effective weighting.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("weights")
		reg := criteria.Default()
		w, err := loadWeights(cfg, path, reg)
		if err != nil {
			return eris.Wrap(err, "weights check")
		}
		formatWeights(cmd.OutOrStdout(), w)
		return nil
	},
}

// formatWeights writes each criterion with its raw weight and normalized share.
func formatWeights(out io.Writer, w weights.Config) {
	m := w.Map()
	total := 0.0
	for _, v := range m {
		total += v
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CRITERION\tWEIGHT\tSHARE")
	for _, name := range w.Names() {
		share := 0.0
		if total > 0 {
			share = m[name] / total * 100
		}
		_, _ = fmt.Fprintf(tw, "%s\t%g\t%.1f%%\n", name, m[name], share)
	}
	_ = tw.Flush()
}

func init() {
	weightsCheckCmd.Flags().String("weights", "", "YAML weight file (defaults to the config file's weights, then built-in weights)")
	weightsCmd.AddCommand(weightsCheckCmd)
	rootCmd.AddCommand(weightsCmd)
}
