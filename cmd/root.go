// Package cmd is the cobra command tree for the my-unicorn CLI (spec.md
// §6 External Interfaces). The CLI's argument-parsing nuance is a
// non-goal of the spec itself, but the command skeleton and its plumbing
// into pkg/container/pkg/orchestrator is not, and is needed for this
// module to run as a complete, buildable repo.
//
// Grounded on the teacher's cmd/root.go: a persistent-flag root command
// with a PersistentPreRun that builds shared dependencies once and hands
// them to every subcommand. flanksource/clicky and flanksource/commons/
// logger (the teacher's flag-binding and structured-logging helpers) are
// private/foreign-org modules outside this module's reach, so this tree
// uses plain cobra flags and pkg/progress/logrus directly instead (see
// DESIGN.md's dropped-dependency notes).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/config"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/container"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/platform"
)

var (
	configDir    string
	osOverride   string
	archOverride string
	debug        bool
	plain        bool

	app *container.Container
)

var rootCmd = &cobra.Command{
	Use:          "my-unicorn",
	Short:        "Manage AppImage applications",
	Long:         `my-unicorn installs, updates, and removes AppImage applications from curated and ad-hoc GitHub release feeds.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		platform.SetOverrides(osOverride, archOverride)

		cfg, err := config.Load(config.PathFor(configDir))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		built, err := container.Build(cfg, container.Options{Debug: debug, Plain: plain})
		if err != nil {
			return fmt.Errorf("build dependencies: %w", err)
		}
		app = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "Directory containing config.json (default: $XDG_CONFIG_HOME/my-unicorn)")
	rootCmd.PersistentFlags().StringVar(&osOverride, "os", "", "Override target OS (default: runtime.GOOS)")
	rootCmd.PersistentFlags().StringVar(&archOverride, "arch", "", "Override target architecture (default: runtime.GOARCH)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Disable the interactive progress renderer")
}

// Execute runs the command tree; its error is already printed by cobra's
// own error handling except where commands return one explicitly.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to the process exit code spec.md §6
// documents for `update` (0 success, 1 any failure, 2 usage/validation);
// the other subcommands reuse the same convention for consistency.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := err.(usageError); ok {
		return 2
	}
	return 1
}

// usageError marks an error as a CLI-usage/validation failure (spec.md
// §6 "update": "exit code ... 2 on usage/validation errors").
type usageError struct{ error }

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
