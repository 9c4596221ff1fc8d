package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/noisemix/internal/compose"
	"github.com/MeKo-Tech/noisemix/internal/render"
	"github.com/MeKo-Tech/noisemix/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate [composition]",
	Short: "Generate a normalized field and write it as a grayscale PNG",
	Long: `Generate evaluates a composition over a rectangular region of noise space
and writes the normalized field as a grayscale PNG.

The composition file may be given as the argument or with --mix.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("mix", "noisemix.mix.yaml", "Composition file (YAML or JSON)")
	generateCmd.Flags().Float64("x", 0, "X offset of the region in noise space")
	generateCmd.Flags().Float64("y", 0, "Y offset of the region in noise space")
	generateCmd.Flags().Int("width", 256, "Region width in samples")
	generateCmd.Flags().Int("height", 256, "Region height in samples")
	generateCmd.Flags().IntP("workers", "w", 0, "Number of parallel generator workers (default: number of CPUs)")
	generateCmd.Flags().StringP("out", "o", "field.png", "Output PNG path")
	generateCmd.Flags().Float32("smooth", 0, "Gaussian blur sigma applied to the image (0 disables)")
	generateCmd.Flags().Float64("scale", 1, "Resize factor applied to the image")
	generateCmd.Flags().Bool("progress", false, "Show progress while base fields are generated")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.mix", "mix"},
		{"generate.x", "x"},
		{"generate.y", "y"},
		{"generate.width", "width"},
		{"generate.height", "height"},
		{"generate.workers", "workers"},
		{"generate.out", "out"},
		{"generate.smooth", "smooth"},
		{"generate.scale", "scale"},
		{"generate.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, generateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	mixPath := viper.GetString("generate.mix")
	if len(args) == 1 {
		mixPath = args[0]
	}
	region := compose.Region{
		X:      float32(viper.GetFloat64("generate.x")),
		Y:      float32(viper.GetFloat64("generate.y")),
		Width:  viper.GetInt("generate.width"),
		Height: viper.GetInt("generate.height"),
	}
	workers := viper.GetInt("generate.workers")
	outPath := viper.GetString("generate.out")
	smooth := float32(viper.GetFloat64("generate.smooth"))
	scale := viper.GetFloat64("generate.scale")
	showProgress := viper.GetBool("generate.progress")

	if logger == nil {
		initLogging()
	}

	if region.Width <= 0 || region.Height <= 0 {
		return fmt.Errorf("invalid region %dx%d: width and height must be positive", region.Width, region.Height)
	}
	if scale <= 0 {
		return fmt.Errorf("invalid scale %v: must be positive", scale)
	}

	cfg, err := compose.Load(mixPath)
	if err != nil {
		return err
	}

	logger.Info("Starting field generation",
		"mix", mixPath,
		"fields", cfg.Dictionary.Len(),
		"x", region.X,
		"y", region.Y,
		"width", region.Width,
		"height", region.Height,
		"workers", workers,
	)
	if unused := cfg.Unused(); len(unused) > 0 {
		logger.Warn("Composition defines fields the expression never uses", "tags", unused)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	progress := worker.NewProgress(cfg.Dictionary.Len(), showProgress)
	engine, err := compose.NewEngine(cfg, compose.Options{
		Workers:    workers,
		Logger:     logger,
		OnProgress: progress.Callback(),
	})
	if err != nil {
		return err
	}

	res, err := engine.Generate(ctx, region)
	progress.Done()
	if err != nil {
		return fmt.Errorf("failed to generate field: %w", err)
	}
	logger.Info(progress.Summary())

	if res.Degenerate() {
		logger.Warn("Field is constant before normalization; writing an all-black image", "value", res.Raw.Min)
	}

	img, err := render.ToGray(res.Values, res.Width, res.Height)
	if err != nil {
		return err
	}
	img = render.Smooth(img, smooth)
	if img, err = render.Scale(img, scale); err != nil {
		return err
	}
	if err := render.WritePNG(outPath, img); err != nil {
		return err
	}

	logger.Info("Field written",
		"path", outPath,
		"raw_min", res.Raw.Min,
		"raw_max", res.Raw.Max,
		"image_width", img.Bounds().Dx(),
		"image_height", img.Bounds().Dy(),
	)
	return nil
}
