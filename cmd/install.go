package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/orchestrator"
)

var (
	installConcurrency int
	installNoVerify    bool
	installDownloadDir string
	installNoDesktop   bool
)

var installCmd = &cobra.Command{
	Use:   "install <targets...>",
	Short: "Install one or more AppImage applications",
	Long: `Install installs one or more applications by catalog name or
repository URL (spec.md §6 "install <targets…>").

Examples:
  my-unicorn install freetube
  my-unicorn install freetube joplin
  my-unicorn install https://github.com/standardnotes/app`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().IntVar(&installConcurrency, "concurrency", 0, "Max concurrent installs (default: config's max_concurrent_downloads)")
	installCmd.Flags().BoolVar(&installNoVerify, "no-verify", false, "Skip asset verification")
	installCmd.Flags().StringVar(&installDownloadDir, "download-dir", "", "Directory for downloaded files before install")
	installCmd.Flags().BoolVar(&installNoDesktop, "no-desktop", false, "Skip writing a desktop entry")
}

func runInstall(cmd *cobra.Command, args []string) error {
	opts := orchestrator.Options{
		Concurrency:     installConcurrency,
		VerifyDownloads: !installNoVerify,
		DownloadDir:     installDownloadDir,
		NoDesktop:       installNoDesktop,
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = app.Config.MaxConcurrentDownloads
	}

	app.StartSession(len(args))
	summary := app.Orchestrator.Install(context.Background(), args, opts, app.Reporter)

	failures := 0
	for _, r := range summary.Results {
		if r.Success {
			fmt.Printf("installed %s -> %s\n", r.Target, r.InstallPath)
			continue
		}
		failures++
		printErr("failed to install %s: %v", r.Target, r.Error)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d installs failed", failures, len(summary.Results))
	}
	return nil
}
