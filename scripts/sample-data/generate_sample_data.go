// Generates a synthetic daily climate dataset plus a matching set of model
// artifacts, so the service can be run end to end without real station data.
// The temperature model is a smoothed persistence forecast and the frost
// model a threshold on yesterday's minimum; both are plausible enough to
// exercise the full pipeline.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

func main() {
	var (
		csvPath   = flag.String("csv", "data/datos.csv", "Output CSV path")
		modelsDir = flag.String("models", "models", "Output directory for model artifacts")
		days      = flag.Int("days", 730, "Number of days to generate")
		seed      = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating %d days of synthetic climate data...\n", *days)
	fmt.Printf("  CSV: %s\n", *csvPath)
	fmt.Printf("  Models: %s\n", *modelsDir)

	rng := rand.New(rand.NewSource(*seed))

	if err := writeDataset(*csvPath, *days, rng); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}
	if err := writeArtifacts(*modelsDir); err != nil {
		log.Fatalf("Failed to write model artifacts: %v", err)
	}

	fmt.Println("✓ Sample dataset and model artifacts generated")
}

func writeDataset(path string, days int, rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Fecha", "TMin", "PREC_1", "PREC_2", "TMax_1", "TMax_2"}
	if err := writer.Write(header); err != nil {
		return err
	}

	start := time.Now().AddDate(0, 0, -days)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)

		// Southern-hemisphere seasonal cycle: coldest mid-year.
		seasonal := -8 * math.Cos(2*math.Pi*(float64(date.YearDay())-196)/365)
		tmin := 6 + seasonal + rng.NormFloat64()*2.5
		tmax := tmin + 10 + rng.Float64()*6

		prec1, prec2 := "0.0", "0.0"
		if rng.Float64() < 0.25 {
			prec1 = fmt.Sprintf("%.1f", rng.Float64()*20)
			prec2 = fmt.Sprintf("%.1f", rng.Float64()*20)
		}

		// Occasional sensor dropout.
		tminCell := fmt.Sprintf("%.1f", tmin)
		if rng.Float64() < 0.01 {
			tminCell = ""
		}

		record := []string{
			date.Format("2006-01-02"),
			tminCell,
			prec1,
			prec2,
			fmt.Sprintf("%.1f", tmax),
			fmt.Sprintf("%.1f", tmax+rng.NormFloat64()),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

type modelArtifact struct {
	Tipo      string    `json:"tipo"`
	Coef      []float64 `json:"coeficientes"`
	Intercept float64   `json:"intercepto"`
}

type scalerArtifact struct {
	Mean  []float64 `json:"media"`
	Scale []float64 `json:"escala"`
}

func writeArtifacts(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// Temperature: 70/30 blend of yesterday's minimum and the weekly mean.
	if err := writeBundle(dir, "temperatura",
		modelArtifact{Tipo: "ridge", Coef: []float64{0.7, 0.3}, Intercept: 0},
		scalerArtifact{Mean: []float64{0, 0}, Scale: []float64{1, 1}},
		[]string{"TMIN_lag_1", "TMIN_ma_7"},
	); err != nil {
		return err
	}

	// Frost: positive margin when yesterday's minimum was below ~2 degrees.
	return writeBundle(dir, "helada",
		modelArtifact{Tipo: "logistic", Coef: []float64{-1.2}, Intercept: 2.4},
		scalerArtifact{Mean: []float64{0}, Scale: []float64{1}},
		[]string{"TMIN_lag_1"},
	)
}

func writeBundle(dir, name string, model modelArtifact, scaler scalerArtifact, featureList []string) error {
	files := map[string]any{
		"modelo_" + name + ".json":   model,
		"scaler_" + name + ".json":   scaler,
		"features_" + name + ".json": featureList,
	}
	for filename, v := range files {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
