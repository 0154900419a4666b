package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/autotrack/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Warnings are reported for layouts that load but contain dead ends.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
}

func validateLayout(path string) ValidationResult {
	result := ValidationResult{File: filepath.Base(path), Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}

	cfg, err := engine.ParseTrackConfig(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, layoutError(err))
		return result
	}

	// Building the engine also spawns the cars and applies turntable state,
	// which the row checks do not cover.
	a, err := analyzeConfig(cfg)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	for _, d := range a.DeadEnds {
		result.Warnings = append(result.Warnings, d.String())
	}
	return result
}

// layoutError strips the sentinel prefix so messages read cleanly.
func layoutError(err error) string {
	msg := err.Error()
	if !errors.Is(err, engine.ErrInvalidLayout) {
		return msg
	}
	if rest, ok := strings.CutPrefix(msg, engine.ErrInvalidLayout.Error()+": "); ok {
		return rest
	}
	return msg
}
