package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mdedup",
	Short: "Copy unique documents between MongoDB collections",
	Long: `mdedup deduplicates a MongoDB collection on a single field.

It reads one representative document per distinct value of the field from
the source collection (the document that sorts first ascending on that
field), clears the destination collection, and bulk-inserts the
representatives in batches.

The destination's existing contents are deleted before the first insert.
When the destination is non-empty, mdedup asks for confirmation unless
--yes is given, and exits with status 1 if you decline.

Documents missing the field are grouped together under the null key and
contribute one representative like any other value.

Examples:
  mdedup --uri mongodb://localhost:27017 --db crm --src users --dest users_unique --field email
  mdedup --config mdedup.yaml --batch-size 500
  mdedup --uri $URI --db crm --src users --dest users_unique --field email --yes --throttle 10`,
	Run: runDedup,
}

func init() {
	rootCmd.Flags().String("uri", "", "MongoDB connection URI")
	rootCmd.Flags().String("db", "", "Database name")
	rootCmd.Flags().String("src", "", "Source collection name")
	rootCmd.Flags().String("dest", "", "Destination collection name")
	rootCmd.Flags().String("field", "", "Field to deduplicate on")
	rootCmd.Flags().Int("batch-size", 0, "Documents per bulk insert (default 1000)")
	rootCmd.Flags().Float64("throttle", 0, "Max bulk writes per second (0 = unthrottled)")
	rootCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt for a non-empty destination")
	rootCmd.Flags().String("config", "", "Path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
