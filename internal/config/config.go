// Package config loads paysim settings from flags and an optional config file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/paysim/internal/runner"
	"github.com/torosent/paysim/internal/tracing"
)

const (
	DefaultTarget      = "http://localhost:8081"
	DefaultTotal       = 100
	DefaultConcurrency = 5

	highConcurrency = 500
	highRate        = 1000
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	TargetURL     string            `mapstructure:"target"`
	Total         int               `mapstructure:"total"`
	Mode          runner.Mode       `mapstructure:"mode"`
	Concurrency   int               `mapstructure:"concurrency"`
	Seed          int64             `mapstructure:"seed"` // 0 derives a seed from the clock
	Rate          int               `mapstructure:"rate"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	HealthTimeout time.Duration     `mapstructure:"health_timeout"`
	Headers       map[string]string `mapstructure:"headers"`
	Output        OutputFormat      `mapstructure:"output"`
	Quiet         bool              `mapstructure:"quiet"`
	Dashboard     bool              `mapstructure:"dashboard"`
	LogLevel      string            `mapstructure:"log_level"`
	LogFormat     string            `mapstructure:"log_format"`
	MetricsAddr   string            `mapstructure:"metrics_addr"`
	Thresholds    []string          `mapstructure:"thresholds"`
	Tracing       tracing.Config    `mapstructure:"tracing"`
	ConfigFile    string            `mapstructure:"-"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		TargetURL:     DefaultTarget,
		Total:         DefaultTotal,
		Mode:          runner.ModeNormal,
		Concurrency:   DefaultConcurrency,
		Timeout:       runner.DefaultTimeout,
		HealthTimeout: runner.DefaultHealthTimeout,
		Headers:       map[string]string{},
		Output:        OutputText,
		LogLevel:      "info",
		LogFormat:     "console",
		Tracing:       tracing.Config{Protocol: "grpc", SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q must be an http(s) URL", target))
	}

	if c.Total < 1 {
		issues = append(issues, "total must be >= 1")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if _, err := runner.ParseMode(string(c.Mode)); err != nil {
		issues = append(issues, fmt.Sprintf("mode %q is not supported (use normal, burst, peak, stress or realistic)", c.Mode))
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.HealthTimeout < 0 {
		issues = append(issues, "health timeout must be >= 0")
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q is not supported (use text, json or yaml)", c.Output))
	}
	if c.Dashboard && (c.Output == OutputJSON || c.Output == OutputYAML) {
		issues = append(issues, "dashboard and machine-readable output are mutually exclusive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format %q is not supported (use console or json)", c.LogFormat))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but risky.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Rate > highRate {
		warnings = append(warnings, fmt.Sprintf("High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Concurrency > highConcurrency {
		warnings = append(warnings, fmt.Sprintf("High concurrency configured (%d in flight). Ensure you have authorization to test the target system.", c.Concurrency))
	}
	return warnings
}

func validateTracing(t tracing.Config) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
