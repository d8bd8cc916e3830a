package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed AppImage applications",
	Long:  `List reads state files and prints one line per installed app (spec.md §6 "list").`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	states, err := app.Orchestrator.List()
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Println("no applications installed")
		return nil
	}
	for _, st := range states {
		fmt.Printf("%s\t%s\t%s\n", st.Name, st.InstalledVersion, st.InstallPath)
	}
	return nil
}
