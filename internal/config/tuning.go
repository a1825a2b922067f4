package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/presence.report/internal/presence"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Distance conversion params
	RSSIAtOneMetre   *float64 `json:"rssi_at_1m,omitempty"`
	PathLossExponent *float64 `json:"path_loss_exponent,omitempty"`
	MaxRangeMetres   *float64 `json:"max_range_m,omitempty"`

	// History params
	MinRSSI          *float64 `json:"min_rssi,omitempty"`
	HistoryDepth     *int     `json:"history_depth,omitempty"`
	EvictAfterMisses *int     `json:"evict_after_misses,omitempty"`

	// Grouping params
	Grouper          *string  `json:"grouper,omitempty"` // "chained" or "dbscan"
	ChainToleranceM  *float64 `json:"chain_tolerance_m,omitempty"`
	DBSCANEpsMetres  *float64 `json:"dbscan_eps_m,omitempty"`
	DBSCANMinSamples *int     `json:"dbscan_min_samples,omitempty"`

	// Scan loop params
	ScanWindow   *string `json:"scan_window,omitempty"`   // duration string like "10s"
	ScanInterval *string `json:"scan_interval,omitempty"` // duration string like "2s"

	// Site params
	Label *string `json:"label,omitempty"` // venue label written with each count
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to have a .json extension and to sit under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.RSSIAtOneMetre != nil && *c.RSSIAtOneMetre >= 0 {
		return fmt.Errorf("rssi_at_1m must be negative dBm, got %f", *c.RSSIAtOneMetre)
	}
	if c.PathLossExponent != nil && *c.PathLossExponent <= 0 {
		return fmt.Errorf("path_loss_exponent must be positive, got %f", *c.PathLossExponent)
	}
	if c.MaxRangeMetres != nil && *c.MaxRangeMetres <= 0 {
		return fmt.Errorf("max_range_m must be positive, got %f", *c.MaxRangeMetres)
	}
	if c.HistoryDepth != nil && *c.HistoryDepth < 1 {
		return fmt.Errorf("history_depth must be at least 1, got %d", *c.HistoryDepth)
	}
	if c.EvictAfterMisses != nil && *c.EvictAfterMisses < 0 {
		return fmt.Errorf("evict_after_misses must be non-negative, got %d", *c.EvictAfterMisses)
	}
	if c.Grouper != nil {
		if *c.Grouper != presence.GrouperChained && *c.Grouper != presence.GrouperDBSCAN {
			return fmt.Errorf("unknown grouper %q", *c.Grouper)
		}
	}
	if c.ChainToleranceM != nil && *c.ChainToleranceM <= 0 {
		return fmt.Errorf("chain_tolerance_m must be positive, got %f", *c.ChainToleranceM)
	}
	if c.DBSCANEpsMetres != nil && *c.DBSCANEpsMetres <= 0 {
		return fmt.Errorf("dbscan_eps_m must be positive, got %f", *c.DBSCANEpsMetres)
	}
	if c.DBSCANMinSamples != nil && *c.DBSCANMinSamples < 1 {
		return fmt.Errorf("dbscan_min_samples must be at least 1, got %d", *c.DBSCANMinSamples)
	}
	if c.ScanWindow != nil && *c.ScanWindow != "" {
		if _, err := time.ParseDuration(*c.ScanWindow); err != nil {
			return fmt.Errorf("invalid scan_window '%s': %w", *c.ScanWindow, err)
		}
	}
	if c.ScanInterval != nil && *c.ScanInterval != "" {
		if _, err := time.ParseDuration(*c.ScanInterval); err != nil {
			return fmt.Errorf("invalid scan_interval '%s': %w", *c.ScanInterval, err)
		}
	}
	return nil
}

// GetRSSIAtOneMetre returns the rssi_at_1m value or the default.
func (c *TuningConfig) GetRSSIAtOneMetre() float64 {
	if c.RSSIAtOneMetre == nil {
		return presence.DefaultRSSIAtOneMetre
	}
	return *c.RSSIAtOneMetre
}

// GetPathLossExponent returns the path_loss_exponent value or the default.
func (c *TuningConfig) GetPathLossExponent() float64 {
	if c.PathLossExponent == nil {
		return presence.DefaultPathLossExponent
	}
	return *c.PathLossExponent
}

// GetMaxRangeMetres returns the max_range_m value or the default.
func (c *TuningConfig) GetMaxRangeMetres() float64 {
	if c.MaxRangeMetres == nil {
		return presence.DefaultMaxRangeMetres
	}
	return *c.MaxRangeMetres
}

// GetMinRSSI returns the min_rssi value or the default.
func (c *TuningConfig) GetMinRSSI() float64 {
	if c.MinRSSI == nil {
		return presence.DefaultMinRSSI
	}
	return *c.MinRSSI
}

// GetHistoryDepth returns the history_depth value or the default.
func (c *TuningConfig) GetHistoryDepth() int {
	if c.HistoryDepth == nil {
		return presence.DefaultHistoryDepth
	}
	return *c.HistoryDepth
}

// GetEvictAfterMisses returns the evict_after_misses value or the default.
func (c *TuningConfig) GetEvictAfterMisses() int {
	if c.EvictAfterMisses == nil {
		return 0 // default: decay only, never evict
	}
	return *c.EvictAfterMisses
}

// GetGrouper returns the grouper name or the default.
func (c *TuningConfig) GetGrouper() string {
	if c.Grouper == nil {
		return presence.GrouperChained
	}
	return *c.Grouper
}

// GetScanWindow parses and returns the scan_window as a time.Duration.
func (c *TuningConfig) GetScanWindow() time.Duration {
	if c.ScanWindow == nil || *c.ScanWindow == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ScanWindow)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetScanInterval parses and returns the scan_interval as a time.Duration.
func (c *TuningConfig) GetScanInterval() time.Duration {
	if c.ScanInterval == nil || *c.ScanInterval == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ScanInterval)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetLabel returns the venue label or the default.
func (c *TuningConfig) GetLabel() string {
	if c.Label == nil {
		return "default"
	}
	return *c.Label
}

// ConverterParams assembles the presence converter parameters from the
// config.
func (c *TuningConfig) ConverterParams() presence.ConverterParams {
	return presence.ConverterParams{
		RSSIAtOneMetre:   c.GetRSSIAtOneMetre(),
		PathLossExponent: c.GetPathLossExponent(),
		MaxRangeMetres:   c.GetMaxRangeMetres(),
	}
}

// PipelineParams assembles the presence pipeline parameters from the
// config.
func (c *TuningConfig) PipelineParams() presence.PipelineParams {
	return presence.PipelineParams{
		MinRSSI:          c.GetMinRSSI(),
		Converter:        c.ConverterParams(),
		HistoryDepth:     c.GetHistoryDepth(),
		EvictAfterMisses: c.GetEvictAfterMisses(),
	}
}

// GrouperParams assembles the grouping parameters from the config.
func (c *TuningConfig) GrouperParams() presence.GrouperParams {
	p := presence.GrouperParams{
		ToleranceMetres: presence.DefaultChainToleranceMetres,
		EpsMetres:       presence.DefaultDBSCANEpsMetres,
		MinSamples:      presence.DefaultDBSCANMinSamples,
	}
	if c.ChainToleranceM != nil {
		p.ToleranceMetres = *c.ChainToleranceM
	}
	if c.DBSCANEpsMetres != nil {
		p.EpsMetres = *c.DBSCANEpsMetres
	}
	if c.DBSCANMinSamples != nil {
		p.MinSamples = *c.DBSCANMinSamples
	}
	return p
}
