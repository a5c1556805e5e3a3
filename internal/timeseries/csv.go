package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Schema declares which dataset columns play which role. Roles are explicit;
// nothing is inferred from column names.
type Schema struct {
	DateColumn    string
	DateLayout    string
	TargetColumn  string
	PrecipColumns []string
	TMaxColumns   []string
}

// AuxColumns returns every declared auxiliary column, precipitation first.
func (sc Schema) AuxColumns() []string {
	out := make([]string, 0, len(sc.PrecipColumns)+len(sc.TMaxColumns))
	out = append(out, sc.PrecipColumns...)
	out = append(out, sc.TMaxColumns...)
	return out
}

// LoadCSV reads the historical table from a CSV file. Empty or unparsable
// numeric cells become NaN; a missing declared column, an unparsable date, or
// a duplicate date is a load error, since the dataset is static and loaded
// once at construction.
func LoadCSV(path string, schema Schema) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[col] = i
	}

	required := append([]string{schema.DateColumn, schema.TargetColumn}, schema.AuxColumns()...)
	for _, col := range required {
		if _, ok := indices[col]; !ok {
			return nil, fmt.Errorf("dataset is missing declared column %q", col)
		}
	}

	var obs []Observation
	seen := make(map[time.Time]bool)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: malformed row: %w", line, err)
		}

		date, err := time.Parse(schema.DateLayout, record[indices[schema.DateColumn]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, record[indices[schema.DateColumn]], err)
		}
		if seen[date] {
			return nil, fmt.Errorf("line %d: duplicate date %s", line, date.Format("2006-01-02"))
		}
		seen[date] = true

		o := Observation{
			Date:   date,
			Target: parseCell(record[indices[schema.TargetColumn]]),
			Aux:    make(map[string]float64, len(schema.PrecipColumns)+len(schema.TMaxColumns)),
		}
		for _, col := range schema.AuxColumns() {
			o.Aux[col] = parseCell(record[indices[col]])
		}
		obs = append(obs, o)
	}

	sort.Slice(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})

	store, err := New(obs)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", path).
		Int("total_rows", len(obs)).
		Msg("dataset loaded")

	return store, nil
}

func parseCell(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
