// Command trackcheck inspects layout files.
//
//	trackcheck validate [paths...]   check structure and legend characters
//	trackcheck analyze [paths...]    report tile counts, dead ends and turntables
//
// Paths may be files or directories; directories are scanned for *.json.
// With no paths the layouts directory is used.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
)

const defaultDir = "layouts"

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "trackcheck",
		Usage: "validate and analyze track layout files",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "check layout files for structural errors",
				ArgsUsage: "[file or directory...]",
				Action:    runValidate,
			},
			{
				Name:      "analyze",
				Usage:     "print tile counts, dead-end sides and turntable exits",
				ArgsUsage: "[file or directory...]",
				Action:    runAnalyze,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "trackcheck: %v\n", err)
		os.Exit(1)
	}
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	files, err := layoutFiles(cmd.Args().Slice())
	if err != nil {
		return err
	}
	w := output(cmd)

	invalid := 0
	for _, file := range files {
		result := validateLayout(file)
		if result.Valid {
			fmt.Fprintf(w, "VALID   %s\n", result.File)
			for _, msg := range result.Warnings {
				fmt.Fprintf(w, "        warning: %s\n", msg)
			}
			continue
		}
		invalid++
		fmt.Fprintf(w, "INVALID %s\n", result.File)
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "        - %s\n", msg)
		}
	}
	fmt.Fprintf(w, "\n%d checked, %d valid, %d invalid\n", len(files), len(files)-invalid, invalid)

	if invalid > 0 {
		return fmt.Errorf("%d invalid layout(s)", invalid)
	}
	return nil
}

func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	files, err := layoutFiles(cmd.Args().Slice())
	if err != nil {
		return err
	}
	w := output(cmd)

	failed := 0
	for _, file := range files {
		a, err := analyzeFile(file)
		if err != nil {
			failed++
			fmt.Fprintf(w, "=== %s ===\nerror: %v\n\n", filepath.Base(file), err)
			continue
		}
		writeAnalysis(w, filepath.Base(file), a)
	}
	if failed > 0 {
		return fmt.Errorf("%d layout(s) could not be analyzed", failed)
	}
	return nil
}

// layoutFiles expands args into a sorted list of layout files.
func layoutFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{defaultDir}
	}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no layout files found in %s", strings.Join(args, ", "))
	}
	sort.Strings(files)
	return files, nil
}
