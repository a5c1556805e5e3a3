package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds the fully resolved runtime configuration.
type Settings struct {
	CSVPath       string
	DateColumn    string
	DateLayout    string
	TargetColumn  string
	PrecipColumns []string
	TMaxColumns   []string
	ModelsDir     string
	DataPath      string
	ListenPort    int
	MetricsPort   int
}

// ConfigFile mirrors the YAML configuration layout.
type ConfigFile struct {
	Data struct {
		CSVPath       string   `yaml:"csvPath"`
		DateColumn    string   `yaml:"dateColumn"`
		DateLayout    string   `yaml:"dateLayout"`
		TargetColumn  string   `yaml:"targetColumn"`
		PrecipColumns []string `yaml:"precipColumns"`
		TMaxColumns   []string `yaml:"tmaxColumns"`
	} `yaml:"data"`

	Models struct {
		Dir string `yaml:"dir"`
	} `yaml:"models"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		ListenPort  int    `yaml:"listenPort"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		CSVPath:       getEnvOrDefault("CSV_PATH", config.Data.CSVPath),
		DateColumn:    getEnvOrDefault("DATE_COLUMN", config.Data.DateColumn),
		DateLayout:    getEnvOrDefault("DATE_LAYOUT", config.Data.DateLayout),
		TargetColumn:  getEnvOrDefault("TARGET_COLUMN", config.Data.TargetColumn),
		PrecipColumns: getColumnsFromEnvOrConfig("PRECIP_COLUMNS", config.Data.PrecipColumns),
		TMaxColumns:   getColumnsFromEnvOrConfig("TMAX_COLUMNS", config.Data.TMaxColumns),
		ModelsDir:     getEnvOrDefault("MODELS_DIR", config.Models.Dir),
		DataPath:      getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ListenPort:    getIntFromEnvOrConfig("LISTEN_PORT", config.System.ListenPort),
		MetricsPort:   getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort),
	}

	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	csvPath, err := getEnvRequired("CSV_PATH")
	if err != nil {
		return Settings{}, err
	}

	targetColumn, err := getEnvRequired("TARGET_COLUMN")
	if err != nil {
		return Settings{}, err
	}

	modelsDir, err := getEnvRequired("MODELS_DIR")
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		CSVPath:       csvPath,
		DateColumn:    getEnvOrDefault("DATE_COLUMN", "Fecha"),
		DateLayout:    getEnvOrDefault("DATE_LAYOUT", "2006-01-02"),
		TargetColumn:  targetColumn,
		PrecipColumns: splitOrDefault(os.Getenv("PRECIP_COLUMNS"), nil),
		TMaxColumns:   splitOrDefault(os.Getenv("TMAX_COLUMNS"), nil),
		ModelsDir:     modelsDir,
		DataPath:      os.Getenv("DATA_PATH"), // optional
		ListenPort:    getIntOrDefault("LISTEN_PORT", 8080),
		MetricsPort:   getIntOrDefault("METRICS_PORT", 9090),
	}

	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.DateColumn == "" {
		s.DateColumn = "Fecha"
	}
	if s.DateLayout == "" {
		s.DateLayout = "2006-01-02"
	}
	if s.ListenPort == 0 {
		s.ListenPort = 8080
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 9090
	}
}

func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is missing", key)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getColumnsFromEnvOrConfig(key string, configColumns []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, nil)
	}
	return configColumns
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// validateSettings performs validation of configuration values.
// Auxiliary columns are declared explicitly with their role; the loader never
// guesses roles from column-name substrings.
func validateSettings(s *Settings) error {
	if s.CSVPath == "" {
		return fmt.Errorf("dataset CSV path is required")
	}
	if s.TargetColumn == "" {
		return fmt.Errorf("target column is required")
	}
	if s.ModelsDir == "" {
		return fmt.Errorf("models directory is required")
	}
	if s.DateColumn == "" {
		return fmt.Errorf("date column cannot be empty")
	}
	if s.DateLayout == "" {
		return fmt.Errorf("date layout cannot be empty")
	}

	if s.ListenPort < 1024 || s.ListenPort > 65535 {
		return fmt.Errorf("listen port must be between 1024 and 65535, got %d", s.ListenPort)
	}
	if s.MetricsPort < 1024 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	if s.ListenPort == s.MetricsPort {
		return fmt.Errorf("listen port and metrics port must differ, both are %d", s.ListenPort)
	}

	seen := make(map[string]string)
	seen[s.TargetColumn] = "target"
	for _, col := range s.PrecipColumns {
		if col == "" {
			return fmt.Errorf("precipitation column names cannot be empty")
		}
		if role, dup := seen[col]; dup {
			return fmt.Errorf("column %s declared as both %s and precipitation", col, role)
		}
		seen[col] = "precipitation"
	}
	for _, col := range s.TMaxColumns {
		if col == "" {
			return fmt.Errorf("max-temperature column names cannot be empty")
		}
		if role, dup := seen[col]; dup {
			return fmt.Errorf("column %s declared as both %s and max-temperature", col, role)
		}
		seen[col] = "max-temperature"
	}

	return nil
}
