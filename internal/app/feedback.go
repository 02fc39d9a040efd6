package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"civicgrid.dev/grievdedup/internal/cli"
	"civicgrid.dev/grievdedup/internal/config"
	"civicgrid.dev/grievdedup/internal/db"
	"civicgrid.dev/grievdedup/internal/embedclient"
	"civicgrid.dev/grievdedup/internal/logging"
	"civicgrid.dev/grievdedup/internal/pipeline"
	payloadschema "civicgrid.dev/grievdedup/schema"
)

func runFeedback(args []string) int {
	fs := flag.NewFlagSet("feedback", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	payload := fs.String("payload", "", "Feedback payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to feedback payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	fb, err := payloadschema.ValidateFeedback(payloadJSON)
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

	if err := orchestrator.SubmitFeedback(ctx, pipeline.FeedbackRequest{
		GrievanceID:        fb.GrievanceID,
		MatchedGrievanceID: fb.MatchedGrievanceID,
		OriginalStatus:     fb.OriginalStatus,
		CorrectedStatus:    fb.CorrectedStatus,
		OriginalScore:      fb.OriginalScore,
		Notes:              fb.Notes,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Feedback failed: %v\n", err)
		return 1
	}

	fmt.Printf("recorded feedback for grievance_id=%d (%s -> %s)\n", fb.GrievanceID, fb.OriginalStatus, fb.CorrectedStatus)
	return 0
}
