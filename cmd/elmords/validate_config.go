package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NREL/elm-sub000/internal/app"
)

func newValidateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Resolve flags, env, and config file, then report whether the result is runnable",
	}
	flags := bindConfigFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.resolve()
		if err != nil {
			return fmt.Errorf("resolve config: %w", err)
		}
		if err := app.ValidateConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "config ok")
		return nil
	}
	return cmd
}
