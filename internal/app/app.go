package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "submit":
		return runSubmitBatch(args[1:], false)
	case "process", "run-once":
		return runSubmitBatch(args[1:], true)
	case "status":
		return runStatus(args[1:])
	case "feedback":
		return runFeedback(args[1:])
	case "threshold":
		return runThreshold(args[1:])
	case "serve":
		return runServe(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "grievdedup CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  grievdedup <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  submit     Submit a batch of PDFs/pages for dedup, return its batch id")
	fmt.Fprintln(os.Stderr, "  process    Submit a batch and block until it reaches a terminal state")
	fmt.Fprintln(os.Stderr, "  run-once   Alias for process")
	fmt.Fprintln(os.Stderr, "  status     Show a batch's processing status")
	fmt.Fprintln(os.Stderr, "  feedback   Record a reviewer correction and nudge adaptive thresholds")
	fmt.Fprintln(os.Stderr, "  threshold  List current adaptive threshold values")
	fmt.Fprintln(os.Stderr, "  serve      Start the Echo API server")
	fmt.Fprintln(os.Stderr, "  daemon     Install/manage the serve systemd unit")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"grievdedup <command> -h\" for command-specific flags.")
}
