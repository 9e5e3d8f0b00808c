package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
	"github.com/MeKo-Tech/terrasine/internal/field"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect NAME",
	Short: "Show the field stored for a catalogued run",
	Long: `Print the field definition recorded for a run in the catalogue.

The field can be evaluated at arbitrary points with --eval and the stored image
can be extracted with --extract.

Example:
  terrasine inspect terraina.png --catalog runs.db --eval 0,0 --eval 0.25,-0.1`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringArray("eval", nil, "Evaluate the field at x,y (repeatable)")
	inspectCmd.Flags().String("extract", "", "Write the stored image to this path")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	catalogPath := viper.GetString("catalog")
	if catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}

	points, err := cmd.Flags().GetStringArray("eval")
	if err != nil {
		return err
	}
	extract, err := cmd.Flags().GetString("extract")
	if err != nil {
		return err
	}

	reader, err := catalog.OpenReader(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer reader.Close()

	entry, err := reader.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:      %s\n", entry.Name)
	fmt.Fprintf(out, "kind:      %s\n", entry.Kind)
	fmt.Fprintf(out, "color map: %s\n", entry.ColorMap)
	fmt.Fprintf(out, "size:      %dx%d\n", entry.Width, entry.Height)
	fmt.Fprintf(out, "seed:      %d\n", entry.Seed)
	fmt.Fprintf(out, "octaves:   %d\n", entry.Octaves)
	fmt.Fprintf(out, "range:     [%g, %g]\n", entry.Min, entry.Max)
	if entry.Degenerate {
		fmt.Fprintln(out, "degenerate: constant field, normalized to 0")
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, entry.FieldJSON, "", "  "); err != nil {
		return fmt.Errorf("stored field is not valid JSON: %w", err)
	}
	fmt.Fprintf(out, "field:\n%s\n", pretty.String())

	if len(points) > 0 {
		f, err := field.Unmarshal(entry.FieldJSON)
		if err != nil {
			return fmt.Errorf("failed to decode field: %w", err)
		}
		for _, p := range points {
			x, y, err := parsePoint(p)
			if err != nil {
				return fmt.Errorf("invalid point %q: %w", p, err)
			}
			fmt.Fprintf(out, "f(%g, %g) = %.17g\n", x, y, f.Eval(x, y))
		}
	}

	if extract != "" {
		if len(entry.Image) == 0 {
			return fmt.Errorf("run %s has no stored image", entry.Name)
		}
		if err := os.WriteFile(extract, entry.Image, 0o644); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
		logger.Info("Extracted image", "name", entry.Name, "path", extract, "bytes", len(entry.Image))
	}

	return nil
}

// parsePoint parses "x,y" into two floats.
func parsePoint(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 2 comma-separated values, got %d", len(parts))
	}

	var xy [2]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		xy[i] = val
	}

	return xy[0], xy[1], nil
}
