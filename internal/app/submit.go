package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"civicgrid.dev/grievdedup/internal/cli"
	"civicgrid.dev/grievdedup/internal/config"
	"civicgrid.dev/grievdedup/internal/db"
	"civicgrid.dev/grievdedup/internal/embedclient"
	"civicgrid.dev/grievdedup/internal/logging"
	"civicgrid.dev/grievdedup/internal/pipeline"
	payloadschema "civicgrid.dev/grievdedup/schema"
)

// runSubmitBatch backs both the "submit" and "process"/"run-once" commands.
// submit returns as soon as the batch id is assigned (§5's 202 semantics);
// process/run-once additionally polls until the batch reaches a terminal
// state before the process exits, since a one-shot CLI invocation can't
// otherwise outlive the orchestrator's background goroutine.
func runSubmitBatch(args []string, forceWait bool) int {
	name := "submit"
	if forceWait {
		name = "process"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	payload := fs.String("payload", "", "Batch submit payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to batch submit payload JSON file (overrides --payload)")
	wait := fs.Bool("wait", forceWait, "Block until the batch reaches a terminal state before exiting")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if forceWait {
		*wait = true
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	batch, err := payloadschema.ValidateBatchSubmit(payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	embedder := embedclient.NewClient(cfg)
	orchestrator := pipeline.NewOrchestrator(pool, embedder, logger, cfg)

	req := pipeline.BatchRequest{
		Source:            "cli",
		SubmittedByUserID: batch.UserID,
		PDFs:              make([]pipeline.PDFEntry, 0, len(batch.PDFs)),
	}
	for _, pdf := range batch.PDFs {
		entry := pipeline.PDFEntry{
			PDFID:      pdf.PDFID,
			Filename:   pdf.Filename,
			Area:       pdf.Area,
			Grievances: make([]pipeline.PageEntry, 0, len(pdf.Grievances)),
		}
		for _, page := range pdf.Grievances {
			entry.Grievances = append(entry.Grievances, pipeline.PageEntry{PageNumber: page.PageNumber, Text: page.Text})
		}
		req.PDFs = append(req.PDFs, entry)
	}

	batchID, err := orchestrator.Submit(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		return 1
	}

	if !*wait {
		return printBatchResult(outputFormat, map[string]any{"batch_id": batchID})
	}

	final, err := pollBatchUntilTerminal(ctx, pool, batchID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to poll batch status: %v\n", err)
		return 1
	}

	exitCode := 0
	if final.State == "failed" {
		exitCode = 1
	}
	if printErr := printBatchResult(outputFormat, final); printErr != 0 {
		return printErr
	}
	return exitCode
}

func pollBatchUntilTerminal(ctx context.Context, pool *db.Pool, batchID int64) (*db.ProcessingBatch, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		batch, err := pool.GetBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if batch.State == "completed" || batch.State == "failed" {
			return batch, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for batch %d to finish: %w", batchID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printBatchResult(format string, value any) int {
	if format == outputFormatJSON {
		if err := printJSON(value); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	switch v := value.(type) {
	case map[string]any:
		fmt.Printf("batch_id=%v\n", v["batch_id"])
	case *db.ProcessingBatch:
		fmt.Printf("batch_id=%d status=%s total_grievances=%d unique=%d duplicate=%d near_duplicate=%d\n",
			v.BatchID, v.State, v.TotalGrievances, v.UniqueCount, v.DuplicateCount, v.NearDuplicateCount)
		if v.ErrorMessage != nil {
			fmt.Printf("error=%s\n", *v.ErrorMessage)
		}
	}
	return 0
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty; pass --%s or --%s-file", label, label, label)
	}
	return json.RawMessage(trimmed), nil
}
