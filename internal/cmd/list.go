package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the runs recorded in a catalogue",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	catalogPath := viper.GetString("catalog")
	if catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}

	reader, err := catalog.OpenReader(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer reader.Close()

	meta, err := reader.Metadata()
	if err != nil {
		return err
	}
	entries, err := reader.List()
	if err != nil {
		return err
	}

	logger.Debug("Listing catalogue", "path", catalogPath, "name", meta.Name, "runs", len(entries))

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCOLOR MAP\tSIZE\tSEED\tOCTAVES\tMIN\tMAX\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\t%d\t%d\t%.4f\t%.4f\t%s\n",
			e.Name, e.Kind, e.ColorMap, e.Width, e.Height, e.Seed, e.Octaves, e.Min, e.Max,
			e.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
