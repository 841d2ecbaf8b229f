package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ziangzhang/mdedup/internal/config"
	"github.com/ziangzhang/mdedup/internal/dedupe"
	"github.com/ziangzhang/mdedup/internal/store"
)

func runDedup(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()

	client, err := store.Connect(ctx, cfg.URI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to disconnect: %v\n", err)
		}
	}()

	db := client.Database(cfg.Database)
	src := store.NewCollection(db.Collection(cfg.Source))
	dst := store.NewCollection(db.Collection(cfg.Dest))

	// Confirmation gate: only when the destination already holds documents.
	// The pipeline itself never prompts; it treats the destination as
	// disposable.
	if !cfg.Yes {
		existing, err := dst.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to count destination documents: %v\n", err)
			os.Exit(1)
		}
		if existing > 0 {
			ok, err := promptYesNo(fmt.Sprintf(
				"Destination collection %q holds %s document(s) that will be deleted. Proceed? (y/N): ",
				cfg.Dest, formatNumber(int(existing))))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to read confirmation: %v\n", err)
				os.Exit(1)
			}
			if !ok {
				fmt.Println("Operation aborted.")
				os.Exit(1)
			}
		}
	}

	opts := []dedupe.Option{dedupe.WithBatchSize(cfg.BatchSize)}
	if cfg.Throttle > 0 {
		opts = append(opts, dedupe.WithThrottle(rate.NewLimiter(rate.Limit(cfg.Throttle), 1)))
	}

	fmt.Printf("Deduplicating %s.%s on %q into %s.%s (batch size: %s)...\n",
		cfg.Database, cfg.Source, cfg.Field, cfg.Database, cfg.Dest,
		formatNumber(cfg.BatchSize))

	start := time.Now()
	res, err := dedupe.New(src, dst, cfg.Field, opts...).Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var werr *dedupe.WriteError
		if errors.As(err, &werr) && res.Inserted > 0 {
			fmt.Fprintf(os.Stderr, "%s Destination %q holds a partial copy: %s document(s) were committed before the failure.\n",
				color.YellowString("Warning:"), cfg.Dest, formatNumber(res.Inserted))
		}
		os.Exit(1)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Deduplication complete\n", green("✓"))
	fmt.Printf("  Documents removed from destination: %s\n", formatNumber(int(res.Cleared)))
	fmt.Printf("  Unique documents inserted: %s\n", formatNumber(res.Inserted))
	fmt.Printf("  Bulk writes issued: %s\n", formatNumber(res.Batches))
	fmt.Printf("  Time taken: %s\n", time.Since(start).Round(time.Millisecond))
}

// loadConfig merges defaults, the optional config file, the environment,
// and any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("uri") {
		cfg.URI, _ = cmd.Flags().GetString("uri")
	}
	if cmd.Flags().Changed("db") {
		cfg.Database, _ = cmd.Flags().GetString("db")
	}
	if cmd.Flags().Changed("src") {
		cfg.Source, _ = cmd.Flags().GetString("src")
	}
	if cmd.Flags().Changed("dest") {
		cfg.Dest, _ = cmd.Flags().GetString("dest")
	}
	if cmd.Flags().Changed("field") {
		cfg.Field, _ = cmd.Flags().GetString("field")
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	if cmd.Flags().Changed("throttle") {
		cfg.Throttle, _ = cmd.Flags().GetFloat64("throttle")
	}
	if cmd.Flags().Changed("yes") {
		cfg.Yes, _ = cmd.Flags().GetBool("yes")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// promptYesNo prompts the user and returns whether they answered
// affirmatively
func promptYesNo(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	return isAffirmative(response), nil
}

// isAffirmative reports whether a prompt response means yes
func isAffirmative(response string) bool {
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	}
	return false
}

// formatNumber formats a number with thousand separators
// Handles numbers from 0 to billions with proper formatting
func formatNumber(n int) string {
	if n < 0 {
		return fmt.Sprintf("-%s", formatNumber(-n))
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	if n < 1000000000 {
		return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
	}
	// Billions
	return fmt.Sprintf("%d,%03d,%03d,%03d", n/1000000000, (n/1000000)%1000, (n/1000)%1000, n%1000)
}
