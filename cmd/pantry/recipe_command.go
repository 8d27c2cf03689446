package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pantry/internal/api"
	"pantry/internal/pantry"
)

func newRecipeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Suggest a recipe from the current inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			generator, _, err := ctx.newGenerator()
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(runCtx context.Context, manager *pantry.Manager) error {
				items, err := manager.Snapshot(runCtx)
				if err != nil {
					return err
				}
				result, err := generator.Generate(runCtx, items)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromRecipe(result))
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.String())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
