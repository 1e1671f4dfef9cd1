package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/peakpurity/internal/purity"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/purity.defaults.json"

// TuningConfig holds instrument-specific overrides for the purity pipeline.
// The schema matches the /api/params endpoint so the same JSON can be used
// for startup configuration and for per-request overrides.
type TuningConfig struct {
	// Preparation
	TrimFraction    *float64 `json:"trim_fraction,omitempty"`
	NoiseFraction   *float64 `json:"noise_fraction,omitempty"`
	SmoothingWindow *int     `json:"smoothing_window,omitempty"`

	// Signal computation
	AgilentAlpha      *float64 `json:"agilent_alpha,omitempty"`
	UnimodalTolerance *float64 `json:"unimodal_tolerance,omitempty"`

	// Decision thresholds
	AgilentPure          *float64 `json:"agilent_pure,omitempty"`
	PCAPure              *float64 `json:"pca_pure,omitempty"`
	MinCorrelationImpure *float64 `json:"min_correlation_impure,omitempty"`
	MinCorrelationPure   *float64 `json:"min_correlation_pure,omitempty"`
	MeanCorrelationPure  *float64 `json:"mean_correlation_pure,omitempty"`

	// Batch
	Workers *int `json:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil, so
// every Get* accessor reports its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// FromParams returns a fully populated TuningConfig mirroring p.
func FromParams(p purity.Params) *TuningConfig {
	return &TuningConfig{
		TrimFraction:         ptrFloat64(p.TrimFraction),
		NoiseFraction:        ptrFloat64(p.NoiseFraction),
		SmoothingWindow:      ptrInt(p.SmoothingWindow),
		AgilentAlpha:         ptrFloat64(p.AgilentAlpha),
		UnimodalTolerance:    ptrFloat64(p.UnimodalTolerance),
		AgilentPure:          ptrFloat64(p.AgilentPure),
		PCAPure:              ptrFloat64(p.PCAPure),
		MinCorrelationImpure: ptrFloat64(p.MinCorrelationImpure),
		MinCorrelationPure:   ptrFloat64(p.MinCorrelationPure),
		MeanCorrelationPure:  ptrFloat64(p.MeanCorrelationPure),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
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
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a JSON tuning document. Unknown
// fields are rejected so a misspelt threshold is not silently ignored.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and common parents.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. The ranges are
// those of purity.Params; Workers must be non-negative (0 means one per CPU).
func (c *TuningConfig) Validate() error {
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return c.Params().Validate()
}

// Params merges the overrides onto purity.DefaultParams.
func (c *TuningConfig) Params() purity.Params {
	return purity.Params{
		AgilentAlpha:         c.GetAgilentAlpha(),
		UnimodalTolerance:    c.GetUnimodalTolerance(),
		TrimFraction:         c.GetTrimFraction(),
		NoiseFraction:        c.GetNoiseFraction(),
		SmoothingWindow:      c.GetSmoothingWindow(),
		AgilentPure:          c.GetAgilentPure(),
		PCAPure:              c.GetPCAPure(),
		MinCorrelationImpure: c.GetMinCorrelationImpure(),
		MinCorrelationPure:   c.GetMinCorrelationPure(),
		MeanCorrelationPure:  c.GetMeanCorrelationPure(),
	}
}

// Merge returns a copy of c with every field set in o taking precedence.
func (c *TuningConfig) Merge(o *TuningConfig) *TuningConfig {
	out := *c
	if o == nil {
		return &out
	}
	pick := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	pick(&out.TrimFraction, o.TrimFraction)
	pick(&out.NoiseFraction, o.NoiseFraction)
	pick(&out.AgilentAlpha, o.AgilentAlpha)
	pick(&out.UnimodalTolerance, o.UnimodalTolerance)
	pick(&out.AgilentPure, o.AgilentPure)
	pick(&out.PCAPure, o.PCAPure)
	pick(&out.MinCorrelationImpure, o.MinCorrelationImpure)
	pick(&out.MinCorrelationPure, o.MinCorrelationPure)
	pick(&out.MeanCorrelationPure, o.MeanCorrelationPure)
	if o.SmoothingWindow != nil {
		out.SmoothingWindow = o.SmoothingWindow
	}
	if o.Workers != nil {
		out.Workers = o.Workers
	}
	return &out
}

var defaults = purity.DefaultParams()

// GetTrimFraction returns the trim_fraction value or the default.
func (c *TuningConfig) GetTrimFraction() float64 {
	if c.TrimFraction == nil {
		return defaults.TrimFraction
	}
	return *c.TrimFraction
}

// GetNoiseFraction returns the noise_fraction value or the default.
func (c *TuningConfig) GetNoiseFraction() float64 {
	if c.NoiseFraction == nil {
		return defaults.NoiseFraction
	}
	return *c.NoiseFraction
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return defaults.SmoothingWindow
	}
	return *c.SmoothingWindow
}

// GetAgilentAlpha returns the agilent_alpha value or the default.
func (c *TuningConfig) GetAgilentAlpha() float64 {
	if c.AgilentAlpha == nil {
		return defaults.AgilentAlpha
	}
	return *c.AgilentAlpha
}

// GetUnimodalTolerance returns the unimodal_tolerance value or the default.
func (c *TuningConfig) GetUnimodalTolerance() float64 {
	if c.UnimodalTolerance == nil {
		return defaults.UnimodalTolerance
	}
	return *c.UnimodalTolerance
}

// GetAgilentPure returns the agilent_pure value or the default.
func (c *TuningConfig) GetAgilentPure() float64 {
	if c.AgilentPure == nil {
		return defaults.AgilentPure
	}
	return *c.AgilentPure
}

// GetPCAPure returns the pca_pure value or the default.
func (c *TuningConfig) GetPCAPure() float64 {
	if c.PCAPure == nil {
		return defaults.PCAPure
	}
	return *c.PCAPure
}

// GetMinCorrelationImpure returns the min_correlation_impure value or the default.
func (c *TuningConfig) GetMinCorrelationImpure() float64 {
	if c.MinCorrelationImpure == nil {
		return defaults.MinCorrelationImpure
	}
	return *c.MinCorrelationImpure
}

// GetMinCorrelationPure returns the min_correlation_pure value or the default.
func (c *TuningConfig) GetMinCorrelationPure() float64 {
	if c.MinCorrelationPure == nil {
		return defaults.MinCorrelationPure
	}
	return *c.MinCorrelationPure
}

// GetMeanCorrelationPure returns the mean_correlation_pure value or the default.
func (c *TuningConfig) GetMeanCorrelationPure() float64 {
	if c.MeanCorrelationPure == nil {
		return defaults.MeanCorrelationPure
	}
	return *c.MeanCorrelationPure
}

// GetWorkers returns the workers value or 0 (one per CPU).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}
