package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <app>",
	Short: "Remove an installed AppImage application",
	Long:  `Remove deletes the installed file, state, icon, and desktop entry for one app (spec.md §6 "remove <app>").`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := app.Orchestrator.Remove(name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	fmt.Printf("removed %s\n", name)
	return nil
}
