package main

import (
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"frostcast/internal/cfg"
	"frostcast/internal/evaluation"
	"frostcast/internal/features"
	"frostcast/internal/ml"
	"frostcast/internal/timeseries"
)

func main() {
	var (
		outputPath = flag.String("output", "evaluation", "Output directory for reports")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		startDate  = flag.String("start", "", "First query date to evaluate (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "Last query date to evaluate (YYYY-MM-DD)")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var start, end time.Time
	if *startDate != "" {
		if start, err = time.Parse("2006-01-02", *startDate); err != nil {
			log.Fatal().Err(err).Msg("invalid start date")
		}
	}
	if *endDate != "" {
		if end, err = time.Parse("2006-01-02", *endDate); err != nil {
			log.Fatal().Err(err).Msg("invalid end date")
		}
	}

	store, err := timeseries.LoadCSV(settings.CSVPath, timeseries.Schema{
		DateColumn:    settings.DateColumn,
		DateLayout:    settings.DateLayout,
		TargetColumn:  settings.TargetColumn,
		PrecipColumns: settings.PrecipColumns,
		TMaxColumns:   settings.TMaxColumns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load dataset")
	}

	tempBundle, err := ml.LoadBundle(settings.ModelsDir, "temperatura", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load temperature bundle")
	}
	frostBundle, err := ml.LoadBundle(settings.ModelsDir, "helada", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load frost bundle")
	}

	builder := features.NewBuilder(features.Schema{
		Target: settings.TargetColumn,
		Precip: settings.PrecipColumns,
		TMax:   settings.TMaxColumns,
	})

	engine := evaluation.NewEngine(store, builder, tempBundle, frostBundle)
	if err := engine.Run(start, end); err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	reporter := evaluation.NewReporter(engine.GetResults(), *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("failed to generate reports")
	}
	reporter.PrintSummary()

	log.Info().Str("output", *outputPath).Msg("evaluation completed")
}
