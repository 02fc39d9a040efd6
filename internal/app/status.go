package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"civicgrid.dev/grievdedup/internal/cli"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	batchID := fs.Int64("batch-id", 0, "Batch id to look up (required)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status does not accept positional arguments")
		return 2
	}
	if *batchID <= 0 {
		fmt.Fprintln(os.Stderr, "--batch-id is required and must be positive")
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

	batch, err := pool.GetBatch(ctx, *batchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load batch %d: %v\n", *batchID, err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(batch); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	headers := []string{"BATCH_ID", "STATE", "PDFS", "GRIEVANCES", "UNIQUE", "DUPLICATE", "NEAR_DUP", "STARTED", "COMPLETED", "ERROR"}
	row := []string{
		fmt.Sprintf("%d", batch.BatchID),
		batch.State,
		fmt.Sprintf("%d/%d", batch.ProcessedPDFs, batch.TotalPDFs),
		fmt.Sprintf("%d", batch.TotalGrievances),
		fmt.Sprintf("%d", batch.UniqueCount),
		fmt.Sprintf("%d", batch.DuplicateCount),
		fmt.Sprintf("%d", batch.NearDuplicateCount),
		formatUTCTimestampPtr(batch.StartedAt),
		formatUTCTimestampPtr(batch.CompletedAt),
		truncateForTable(pointerStringOrEmpty(batch.ErrorMessage), 40),
	}
	if err := writeTable(headers, [][]string{row}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
