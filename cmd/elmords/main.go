// Command elmords extracts wind-energy ordinance values for a roster of
// counties: it searches the web for each county's ordinance document,
// downloads and cleans it, validates jurisdiction and legal-text quality,
// parses setback and restriction values through a sequence of structured
// LLM calls, and writes the results to an aggregate table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "elmords",
		Short: "Extract wind-energy ordinance values for a roster of counties",
	}
	root.AddCommand(newRunCmd(), newValidateConfigCmd())
	return root
}
