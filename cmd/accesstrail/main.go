// Package main implements the accesstrail binary: a batch pipeline that
// partitions a web access log by HTTP status and writes the fixed set of
// analytical reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/accesstrail/accesstrail/internal/config"
	"github.com/accesstrail/accesstrail/internal/pipeline"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		inputPath   string
		inputFormat string
		outputDir   string
		dataDir     string
		listRuns    int
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&inputPath, "input", "", "Input access log (plain, .zst, or s3:// URI)")
	flag.StringVar(&inputFormat, "format", "", "Input format: csv, json")
	flag.StringVar(&outputDir, "output", "", "Root directory for report output")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for the run manifest and scratch files")
	flag.IntVar(&listRuns, "list-runs", 0, "List the N most recent runs and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "accesstrail - partitioned access-log report pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: accesstrail [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  accesstrail --input access.log --output ./reports\n")
		fmt.Fprintf(os.Stderr, "  accesstrail --config /etc/accesstrail/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  accesstrail --input s3://logs/access.log.zst\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ACCESSTRAIL_INPUT_PATH            Input access log\n")
		fmt.Fprintf(os.Stderr, "  ACCESSTRAIL_DATA_DIR              Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  ACCESSTRAIL_SUSPICIOUS_THRESHOLD  Failed requests an IP must exceed\n")
		fmt.Fprintf(os.Stderr, "  ACCESSTRAIL_STORAGE_TYPE          Storage type (local, s3)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("accesstrail version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// .env is optional; absence is not an error
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, inputPath, inputFormat, outputDir, dataDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer p.Close()

	if listRuns > 0 {
		if err := printRuns(ctx, p, listRuns); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	summary, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	printSummary(summary)
	if summary.Failed() {
		os.Exit(2)
	}
}

// loadConfig merges config file, environment, and flags, in that order.
func loadConfig(configFile, inputPath, inputFormat, outputDir, dataDir string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	config.LoadFromEnv(cfg)

	// Flags take precedence over file and environment
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if inputFormat != "" {
		cfg.Input.Format = config.InputFormat(inputFormat)
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	return cfg, nil
}

// printSummary writes the user-visible run summary.
func printSummary(summary *pipeline.Summary) {
	fmt.Printf("\nRun %s\n", summary.RunID)
	fmt.Printf("  lines read:    %d\n", summary.Lines)
	fmt.Printf("  records:       %d\n", summary.Records)
	fmt.Printf("  rejected:      %d\n", summary.Rejected)
	fmt.Printf("  reports:\n")
	for _, rep := range summary.Reports {
		if rep.Err != nil {
			fmt.Printf("    %-24s FAILED: %v\n", rep.Name, rep.Err)
			continue
		}
		fmt.Printf("    %-24s %d rows -> %s\n", rep.Name, rep.Rows, rep.Artifact)
	}
}

// printRuns lists the most recent runs from the manifest.
func printRuns(ctx context.Context, p *pipeline.Pipeline, limit int) error {
	runs, err := p.Catalog().ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Printf("%s  %-9s %8d records %6d rejected  %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Status, run.Records, run.Rejected, run.InputPath)
	}
	return nil
}
