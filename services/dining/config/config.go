// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the settings of a dining run and their validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by Default.
const (
	DefaultPhilosophers = 5
	DefaultSleepMax     = 100 * time.Millisecond
	DefaultOutput       = "philosophers.out"
	DefaultRunDirName   = "dining.run"
	DefaultOTLPEndpoint = "localhost:4317"
)

var (
	// ErrInvalidMeals indicates a malformed or out-of-range meal count.
	ErrInvalidMeals = errors.New("config: meal count must be a positive integer")

	// ErrInvalid indicates a Config that failed validation.
	ErrInvalid = errors.New("config: invalid configuration")
)

// Config configures one run.
type Config struct {
	// Philosophers is the ring size N.
	Philosophers int `yaml:"philosophers" toml:"philosophers" validate:"gte=2"`

	// Meals is how many meal cycles each philosopher completes.
	Meals int `yaml:"meals" toml:"meals" validate:"gte=1"`

	// ThinkMax and EatMax bound the random pauses. Zero disables them.
	ThinkMax time.Duration `yaml:"think_max" toml:"think_max" validate:"gte=0"`
	EatMax   time.Duration `yaml:"eat_max" toml:"eat_max" validate:"gte=0"`

	// Output is the event log file. It is truncated at the start of a run
	// and kept afterwards.
	Output string `yaml:"output" toml:"output" validate:"required"`

	// RunDir holds the lock files and the counter while a run is live.
	// It must not exist when the run starts.
	RunDir string `yaml:"run_dir" toml:"run_dir" validate:"required"`

	// Sync fsyncs the event log after every record.
	Sync bool `yaml:"sync" toml:"sync"`

	// MetricsAddr enables the status server when non-empty, e.g. ":9464".
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr" validate:"omitempty,hostname_port"`

	Log   LogConfig   `yaml:"log" toml:"log"`
	Trace TraceConfig `yaml:"trace" toml:"trace"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// TraceConfig selects where coordinator spans are exported.
type TraceConfig struct {
	// Exporter is "none", "stdout" (pretty JSON on stderr) or "otlp".
	Exporter string `yaml:"exporter" toml:"exporter" validate:"oneof=none stdout otlp"`

	// Endpoint is the OTLP gRPC receiver, used with Exporter "otlp".
	Endpoint string `yaml:"endpoint" toml:"endpoint" validate:"required_if=Exporter otlp"`
}

// Default returns the settings used when neither a file nor a flag sets
// a field. Meals has no default and must be supplied.
func Default() Config {
	return Config{
		Philosophers: DefaultPhilosophers,
		ThinkMax:     DefaultSleepMax,
		EatMax:       DefaultSleepMax,
		Output:       DefaultOutput,
		RunDir:       filepath.Join(os.TempDir(), DefaultRunDirName),
		Log:          LogConfig{Level: "info"},
		Trace:        TraceConfig{Exporter: "none", Endpoint: DefaultOTLPEndpoint},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field.
//
// # Outputs
//
//   - error: ErrInvalid wrapping a "field: rule" list, or nil.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), rule))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(parts, "; "))
}

// ParseMeals parses the meal-count argument.
//
// # Description
//
// Accepts only unsigned decimal digits covering the whole string, with a
// value in 1..MaxInt. Signs, spaces, hex prefixes and overflow are rejected.
func ParseMeals(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidMeals)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMeals, raw)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidMeals, raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMeals, n)
	}
	return n, nil
}
