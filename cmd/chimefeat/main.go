// Command chimefeat extracts Daubechies-4 or MFCC features from the CHiME-Home
// chunks of the DCASE2016 domestic audio tagging task and writes a feature
// matrix plus a label file, one line per chunk in index order.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/sonido-dcase/algorithms/common"
	"github.com/RyanBlaney/sonido-dcase/config"
	"github.com/RyanBlaney/sonido-dcase/dataset"
	"github.com/RyanBlaney/sonido-dcase/features"
	"github.com/RyanBlaney/sonido-dcase/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error(err, "chimefeat failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("chimefeat", flag.ContinueOnError)

	configPath := fs.String("config", "", "JSON config file; flags override its values")
	root := fs.String("root", ".", "directory containing chime_home/")
	datasetName := fs.String("dataset", "development_chunks_refined", "dataset index name")
	rate := fs.String("rate", dataset.Rate16kHz, "chunk sampling rate ("+dataset.Rate16kHz+" | "+dataset.Rate48kHz+")")
	extractor := fs.String("extractor", string(config.ExtractorDaub4), "daub4 | mfcc")
	depth := fs.Int("depth", 6, "wavelet decomposition depth")
	outputMode := fs.String("output-mode", string(config.Daub4Flat), "wavelet output: flat | trend")
	fit := fs.String("fit", string(common.FitNone), "fit chunk length to 2^depth: none | trim | pad")
	workers := fs.Int("workers", 0, "concurrent workers (0=auto)")
	onError := fs.String("on-error", string(config.OnErrorAbort), "abort | skip")
	featuresOut := fs.String("features", "", "feature matrix output (default dcase2016.<extractor>)")
	labelsOut := fs.String("labels", "", "label output (default dcase2016.labels)")
	logLevel := fs.String("log-level", "info", "debug | info | warn | error")
	progress := fs.Bool("progress", false, "show a progress bar")

	if err := fs.Parse(args); err != nil {
		return err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if set["extractor"] && config.ExtractorKind(*extractor) != cfg.Extractor {
			cfg.Extractor = config.ExtractorKind(*extractor)
			if !set["features"] {
				cfg.Output.Features = "dcase2016." + *extractor
			}
		}
	} else {
		cfg = config.DefaultConfig(config.ExtractorKind(*extractor))
	}

	// Flags given explicitly win over the config file
	overrides := map[string]func(){
		"root":        func() { cfg.Root = *root },
		"dataset":     func() { cfg.Dataset = *datasetName },
		"rate":        func() { cfg.SamplingRate = *rate },
		"depth":       func() { cfg.Daub4.Depth = *depth },
		"output-mode": func() { cfg.Daub4.Output = config.Daub4Output(*outputMode) },
		"fit":         func() { cfg.Daub4.Fit = common.FitMode(*fit) },
		"workers":     func() { cfg.Workers = *workers },
		"on-error":    func() { cfg.OnError = config.ErrorPolicy(*onError) },
		"features":    func() { cfg.Output.Features = *featuresOut },
		"labels":      func() { cfg.Output.Labels = *labelsOut },
		"log-level":   func() { cfg.LogLevel = *logLevel },
		"progress":    func() { cfg.Progress = *progress },
	}
	for name, apply := range overrides {
		if set[name] || *configPath == "" {
			apply()
		}
	}
	if *configPath == "" {
		if *featuresOut == "" {
			cfg.Output.Features = "dcase2016." + string(cfg.Extractor)
		}
		if *labelsOut == "" {
			cfg.Output.Labels = "dcase2016.labels"
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	extract, err := features.NewExtractor(*cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chime := dataset.NewChime(cfg.Root, cfg.SamplingRate, nil)
	index := chime.Index(cfg.Dataset)
	pipeline := features.NewPipeline(index, chime, chime, extract, features.PipelineConfig{
		Workers:  cfg.Workers,
		OnError:  cfg.OnError,
		Progress: cfg.Progress,
	})

	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	if err := result.Save(cfg.Output.Features, cfg.Output.Labels); err != nil {
		return err
	}

	logging.Info("Wrote features", logging.Fields{
		"dataset":  index.Name(),
		"features": cfg.Output.Features,
		"labels":   cfg.Output.Labels,
		"rows":     len(result.Rows),
		"skipped":  len(result.Skipped),
	})

	return nil
}
