package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter writes the evaluation results to disk in several formats.
type Reporter struct {
	results    *Results
	outputPath string
}

func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes all report formats under the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateSampleLog(); err != nil {
		return err
	}
	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "evaluation_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "EVALUATION RESULTS SUMMARY\n")
	fmt.Fprintf(file, "==========================\n\n")

	fmt.Fprintf(file, "Period: %s to %s\n",
		r.results.StartDate.Format("2006-01-02"),
		r.results.EndDate.Format("2006-01-02"))
	fmt.Fprintf(file, "Days evaluated: %d (skipped %d)\n\n",
		r.results.Evaluated, r.results.Skipped)

	fmt.Fprintf(file, "TEMPERATURE FORECAST\n")
	fmt.Fprintf(file, "--------------------\n")
	fmt.Fprintf(file, "MAE:  %.3f\n", r.results.MAE)
	fmt.Fprintf(file, "RMSE: %.3f\n", r.results.RMSE)
	fmt.Fprintf(file, "Bias: %+.3f\n\n", r.results.Bias)

	fmt.Fprintf(file, "FROST CLASSIFICATION\n")
	fmt.Fprintf(file, "--------------------\n")
	fmt.Fprintf(file, "Accuracy:  %.2f%%\n", r.results.Accuracy*100)
	fmt.Fprintf(file, "Precision: %.2f%%\n", r.results.Precision*100)
	fmt.Fprintf(file, "Recall:    %.2f%%\n", r.results.Recall*100)
	fmt.Fprintf(file, "Confusion: TP=%d TN=%d FP=%d FN=%d\n",
		r.results.TruePositives, r.results.TrueNegatives,
		r.results.FalsePositives, r.results.FalseNegatives)

	log.Info().Str("file", summaryPath).Msg("summary report generated")
	return nil
}

// generateSampleLog writes one CSV row per evaluated day.
func (r *Reporter) generateSampleLog() error {
	csvPath := filepath.Join(r.outputPath, "evaluation_log.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create sample log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Fecha", "Temp Predicha", "Temp Observada", "Error Abs",
		"Prob Helada", "Helada Predicha", "Helada Observada", "Riesgo",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range r.results.Samples {
		record := []string{
			s.Fecha.Format("2006-01-02"),
			fmt.Sprintf("%.2f", s.TempPredicha),
			fmt.Sprintf("%.2f", s.TempObservada),
			fmt.Sprintf("%.2f", s.ErrorAbs),
			fmt.Sprintf("%.1f", s.ProbHelada),
			fmt.Sprintf("%t", s.HeladaPredicha),
			fmt.Sprintf("%t", s.HeladaObservada),
			s.Riesgo,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", csvPath).Msg("sample log generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "evaluation_results.json")

	report := map[string]interface{}{
		"summary":      r.results,
		"samples":      r.results.Samples,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints a summary to the console.
func (r *Reporter) PrintSummary() {
	fmt.Println("\n=== EVALUATION RESULTS ===")
	fmt.Printf("Period: %s to %s\n",
		r.results.StartDate.Format("2006-01-02"),
		r.results.EndDate.Format("2006-01-02"))
	fmt.Printf("Days evaluated: %d (skipped %d)\n", r.results.Evaluated, r.results.Skipped)
	fmt.Printf("Temperature MAE: %.3f  RMSE: %.3f  Bias: %+.3f\n",
		r.results.MAE, r.results.RMSE, r.results.Bias)
	fmt.Printf("Frost accuracy: %.2f%%  precision: %.2f%%  recall: %.2f%%\n",
		r.results.Accuracy*100, r.results.Precision*100, r.results.Recall*100)
	fmt.Println("==========================")
}
