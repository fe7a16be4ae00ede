package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"flierbuilder/internal/flier"
	"flierbuilder/internal/source"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flierctl",
		Short: "Validate, convert and render meeting flier files",
		Long: `flierctl works on flier JSON files without the web service.
It validates documents, prints their download filename, renders the
standalone flier page and converts the legacy text format to JSON.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log parser details to stderr")

	root.AddCommand(
		newValidateCmd(),
		newFilenameCmd(),
		newRenderCmd(),
		newLegacyCmd(),
	)
	return root
}

func logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// readDocument accepts standard JSON and the legacy text format.
func readDocument(ctx context.Context, log *slog.Logger, path string) (flier.Document, error) {
	data, err := readInput(path)
	if err != nil {
		return flier.Document{}, err
	}
	doc, err := source.DecodeResource(ctx, log, data)
	if err != nil {
		return flier.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
