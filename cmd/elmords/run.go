package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/NREL/elm-sub000/internal/app"
	"github.com/NREL/elm-sub000/internal/location"
	"github.com/NREL/elm-sub000/internal/orchestrator"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the county roster and write the aggregate ordinance table",
	}
	flags := bindConfigFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runRun(cmd, flags)
	}
	return cmd
}

func runRun(cmd *cobra.Command, flags *configFlags) error {
	cfg, err := flags.resolve()
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()

	locations, err := location.LoadRoster(cfg.LocationsPath)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	orch, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	defer orch.Close(ctx)

	results, err := orch.Run(ctx, locations)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	found := 0
	for _, r := range results {
		if r.FoundOrdinance {
			found++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d counties, found ordinances for %d\n", len(results), found)
	return nil
}
