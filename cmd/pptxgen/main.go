package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/deckpress/internal/deck/domain"
	"github.com/example/deckpress/internal/deck/render"
	"github.com/example/deckpress/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "pptxgen <input_json> <output_pptx>",
		Short:         "Render a deck JSON file into a PPTX presentation",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if verbose {
				logger = observability.SetupLogger("pptxgen", "debug")
				defer logger.Sync() //nolint:errcheck
			}
			return run(cmd.Context(), args[0], args[1], cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every slide")
	return cmd
}

func run(ctx context.Context, inputPath, outputPath string, out io.Writer, logger *zap.Logger) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var deck domain.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	size := deck.SlideSize()
	fmt.Fprintf(out, "rendering %d slides at %dx%d px\n", len(deck.Slides), size.WidthPx, size.HeightPx)

	data, err := render.NewNative(logger).Generate(ctx, deck)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(out, "wrote %s (%d bytes)\n", outputPath, len(data))
	return nil
}
