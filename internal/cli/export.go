package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewExportCmd builds the subcommand that dumps every submission to CSV.
func NewExportCmd(eventPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all submissions to a CSV dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), *eventPath, output)
		},
	}
	cmd.Flags().StringVar(&output, "output", "submissions.csv", "path of the CSV file to write")
	return cmd
}

func runExport(ctx context.Context, eventPath, output string) error {
	eng, err := newEngine(ctx, eventPath)
	if err != nil {
		return err
	}
	defer eng.Close()

	subs := eng.keyspace.AllSubmissions(ctx)
	eng.log.Info().Int("count", len(subs)).Msg("submissions found in the database")
	if len(subs) == 0 {
		eng.log.Warn().Msg("no submissions found, nothing to export")
		return nil
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"id", "level", "model", "prompt"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, sub := range subs {
		if err := writer.Write([]string{strconv.Itoa(i), sub.Level, sub.Model, sub.Prompt}); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	eng.log.Info().Str("path", output).Msg("submissions exported")
	return nil
}
