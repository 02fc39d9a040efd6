package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"civicgrid.dev/grievdedup/internal/cli"
)

func runThreshold(args []string) int {
	fs := flag.NewFlagSet("threshold", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "threshold does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	rows, err := pool.ListThresholds(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list thresholds: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	headers := []string{"KIND", "CURRENT", "MIN", "MAX", "ADJUSTMENTS", "LAST_ADJUSTED"}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{
			r.Kind,
			fmt.Sprintf("%.4f", r.CurrentValue),
			fmt.Sprintf("%.2f", r.MinValue),
			fmt.Sprintf("%.2f", r.MaxValue),
			fmt.Sprintf("%d", r.AdjustmentCount),
			formatUTCTimestampPtr(r.LastAdjustedAt),
		})
	}
	if err := writeTable(headers, tableRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
