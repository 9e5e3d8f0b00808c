package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/terrasine/internal/terrain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a single terrain image",
	Long: `Render one image from a plain scaled sine field or from a fractal sum of
randomized sine octaves.

Examples:
  terrasine render --kind plain --scale 0.05 --color-map grayscale --name wave.png
  terrasine render --kind fractal --octaves 64 --fall-off 0.95 --seed 42 --size 512x256`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("name", "terrain.png", "Output file name inside --output-dir")
	renderCmd.Flags().String("kind", string(terrain.KindFractal), "Field kind: plain or fractal")
	renderCmd.Flags().String("color-map", "terracolor", "Color map: grayscale or terracolor")
	renderCmd.Flags().String("size", fmt.Sprintf("%dx%d", terrain.ReferenceSize, terrain.ReferenceSize), "Image size as WIDTHxHEIGHT")
	renderCmd.Flags().Float64("alpha", 0, "Wave direction in radians (plain)")
	renderCmd.Flags().Float64("offset", 0, "Phase offset in radians (plain)")
	renderCmd.Flags().Float64("scale", terrain.ReferenceScale, "Scale factor (plain)")
	renderCmd.Flags().Int("octaves", terrain.ReferenceOctaves, "Number of sine octaves (fractal)")
	renderCmd.Flags().Float64("fall-off", terrain.ReferenceFallOff, "Geometric amplitude/wavelength fall-off in (0,1) (fractal)")
	renderCmd.Flags().Int64("seed", 0, "Random seed (fractal, 0 picks one from the clock)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.name", "name"},
		{"render.kind", "kind"},
		{"render.color_map", "color-map"},
		{"render.size", "size"},
		{"render.alpha", "alpha"},
		{"render.offset", "offset"},
		{"render.scale", "scale"},
		{"render.octaves", "octaves"},
		{"render.fall_off", "fall-off"},
		{"render.seed", "seed"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	job, err := jobFromConfig()
	if err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}

	opts, err := loadRunOptions()
	if err != nil {
		return err
	}

	logger.Info("Rendering terrain",
		"name", job.Name,
		"kind", job.Kind,
		"color_map", job.ColorMap,
		"size", fmt.Sprintf("%dx%d", job.Width, job.Height),
		"seed", job.Seed,
		"output_dir", opts.outputDir,
	)

	ctx, cancel := signalContext()
	defer cancel()

	return renderJobs(ctx, opts, []terrain.Job{job})
}

func jobFromConfig() (terrain.Job, error) {
	width, height, err := parseSize(viper.GetString("render.size"))
	if err != nil {
		return terrain.Job{}, fmt.Errorf("invalid size: %w", err)
	}

	job := terrain.Job{
		Name:     viper.GetString("render.name"),
		Kind:     terrain.Kind(viper.GetString("render.kind")),
		ColorMap: viper.GetString("render.color_map"),
		Alpha:    viper.GetFloat64("render.alpha"),
		Offset:   viper.GetFloat64("render.offset"),
		Scale:    viper.GetFloat64("render.scale"),
		Octaves:  viper.GetInt("render.octaves"),
		FallOff:  viper.GetFloat64("render.fall_off"),
		Seed:     viper.GetInt64("render.seed"),
		Width:    width,
		Height:   height,
	}
	if job.Kind == terrain.KindFractal && job.Seed == 0 {
		job.Seed = clockSeed()
	}
	return job, nil
}

// parseSize parses "WIDTHxHEIGHT" into two positive integers.
func parseSize(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT, got %q", s)
	}

	var dims [2]int
	for i, part := range parts {
		val, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		if val < 1 {
			return 0, 0, fmt.Errorf("dimension at position %d must be positive, got %d", i, val)
		}
		dims[i] = val
	}

	return dims[0], dims[1], nil
}
