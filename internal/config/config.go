package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "parsemoney.yaml"

// Config represents the top-level parsemoney.yaml configuration.
type Config struct {
	Input   InputConfig    `yaml:"input"`
	Filters []string       `yaml:"filters"`
	Formats []FormatConfig `yaml:"formats,omitempty"`
	Output  OutputConfig   `yaml:"output"`
	Backup  BackupConfig   `yaml:"backup"`
	Upload  UploadConfig   `yaml:"upload"`
	Log     LogConfig      `yaml:"log"`
}

// InputConfig controls how statement files are found and read.
type InputConfig struct {
	Dir         string `yaml:"dir"`
	Encoding    string `yaml:"encoding"`     // auto, utf-8, windows-1252, iso-8859-1
	GenericSign string `yaml:"generic_sign"` // signed, inverted, auto
}

// FormatConfig declares a bank layout not built in. Column fields name
// header columns.
type FormatConfig struct {
	Name         string   `yaml:"name"`
	Header       []string `yaml:"header"`
	Delimiter    string   `yaml:"delimiter,omitempty"`
	DateLayouts  []string `yaml:"date_layouts,omitempty"`
	Date         string   `yaml:"date"`
	Description  string   `yaml:"description"`
	Amount       string   `yaml:"amount,omitempty"`
	Debit        string   `yaml:"debit,omitempty"`
	Credit       string   `yaml:"credit,omitempty"`
	AmountStyle  string   `yaml:"amount_style,omitempty"` // signed, inverted, split
	DecimalComma bool     `yaml:"decimal_comma,omitempty"`
}

// OutputConfig controls the local table output.
type OutputConfig struct {
	Table    string `yaml:"table"`
	Snapshot bool   `yaml:"snapshot"`
	Sort     bool   `yaml:"sort"`
}

// BackupConfig controls the local archive of input files.
type BackupConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// UploadConfig identifies the spreadsheet the table is pushed to.
type UploadConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Target          string `yaml:"target"` // gsheets or xlsx
	SpreadsheetName string `yaml:"spreadsheet_name"`
	SpreadsheetID   string `yaml:"spreadsheet_id,omitempty"`
	SheetName       string `yaml:"sheet_name"`
	Credentials     string `yaml:"credentials"`
	Workbook        string `yaml:"workbook,omitempty"`
	Layout          string `yaml:"layout"` // rows or daily
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a parsemoney.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultFilters are card payment lines that would double count spending.
var DefaultFilters = []string{
	"ONLINE PAYMENT - THANK YOU",
	"PAYMENT - THANK YOU",
	"Payment Thank You - Web",
	"Payment Thank You-Mobile",
	"PAYMENT RECEIVED - THANK YOU",
	"PAYMENT THANK YOU",
	"ONLINE PAYMENT, THANK YOU",
	"ONLINE PAYMENT THANK YOU",
	"INTERNET PAYMENT THANK YOU",
	"Payment Received",
	"Topped up balance",
	"MOBILE PAYMENT - THANK YOU",
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Dir:         ".",
			Encoding:    "auto",
			GenericSign: "signed",
		},
		Filters: append([]string(nil), DefaultFilters...),
		Output: OutputConfig{
			Table:    "statement.csv",
			Snapshot: true,
			Sort:     true,
		},
		Backup: BackupConfig{
			Enabled: true,
			Dir:     ".",
		},
		Upload: UploadConfig{
			Enabled:         true,
			Target:          "gsheets",
			SpreadsheetName: "tmp_money_import",
			SheetName:       "upload",
			Credentials:     "gdrive.json",
			Workbook:        "money.xlsx",
			Layout:          "rows",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Environment variables that override the config file.
const (
	EnvSpreadsheetName = "PARSEMONEY_SPREADSHEET_NAME"
	EnvSpreadsheetID   = "PARSEMONEY_SPREADSHEET_ID"
	EnvSheetName       = "PARSEMONEY_SHEET_NAME"
	EnvCredentials     = "PARSEMONEY_CREDENTIALS"
	EnvLogLevel        = "PARSEMONEY_LOG_LEVEL"
)

// LoadEnv loads variables from the given .env files (".env" when none are
// given) into the process environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides upload and log settings from the environment.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvSpreadsheetName, &c.Upload.SpreadsheetName},
		{EnvSpreadsheetID, &c.Upload.SpreadsheetID},
		{EnvSheetName, &c.Upload.SheetName},
		{EnvCredentials, &c.Upload.Credentials},
		{EnvLogLevel, &c.Log.Level},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}
