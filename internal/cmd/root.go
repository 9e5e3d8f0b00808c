package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/terrasine/internal/terrain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "terrasine",
	Short: "A summed-sine terrain image generator",
	Long: `Terrasine builds 2D scalar fields from rotated sine waves, sums them into
fractal octaves, normalizes the samples to [0,1] and writes color-mapped PNGs.

Run without a subcommand to render the reference set: test.png (a grayscale
scaled sine) and terraina.png, terrainb.png, terrainc.png (terracolor fractals).`,
	Args: cobra.NoArgs,
	RunE: runReference,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("output-dir", ".", "Output directory for rendered images")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("catalog", "", "Record every run into this SQLite catalogue (e.g., runs.db)")
	rootCmd.PersistentFlags().String("heightmaps", "", "Also write float OpenEXR heightmaps into this directory")
	rootCmd.PersistentFlags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	rootCmd.PersistentFlags().Int("upscale", 1, "Integer nearest-neighbour upscale factor applied before encoding")
	rootCmd.PersistentFlags().Float32("blur", 0, "Gaussian blur sigma applied before encoding (0 disables)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Number of parallel render workers (default: number of CPUs)")
	rootCmd.PersistentFlags().Bool("allow-failures", false, "Exit successfully even if some images fail to render")

	rootCmd.Flags().Int64("seed", 0, "Base seed for the fractal terrains (0 picks one from the clock)")
	rootCmd.Flags().Bool("progress", false, "Show a progress bar while rendering")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"output-dir", "output-dir"},
		{"verbose", "verbose"},
		{"catalog", "catalog"},
		{"heightmaps", "heightmaps"},
		{"png_compression", "png-compression"},
		{"upscale", "upscale"},
		{"blur", "blur"},
		{"workers", "workers"},
		{"allow_failures", "allow-failures"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, rootCmd.PersistentFlags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}

	if err := viper.BindPFlag("reference.seed", rootCmd.Flags().Lookup("seed")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("reference.progress", rootCmd.Flags().Lookup("progress")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TERRASINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func runReference(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	seed := viper.GetInt64("reference.seed")
	if seed == 0 {
		seed = clockSeed()
	}

	opts, err := loadRunOptions()
	if err != nil {
		return err
	}
	opts.progress = viper.GetBool("reference.progress")

	jobs := terrain.ReferenceJobs(seed)
	logger.Info("Rendering reference set",
		"seed", seed,
		"jobs", len(jobs),
		"output_dir", opts.outputDir,
		"workers", opts.workers,
	)

	ctx, cancel := signalContext()
	defer cancel()

	return renderJobs(ctx, opts, jobs)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
