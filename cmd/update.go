package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/orchestrator"
)

var (
	updateCheck        bool
	updateRefreshCache bool
	updateForce        bool
)

var updateCmd = &cobra.Command{
	Use:   "update [<targets...>]",
	Short: "Update installed AppImage applications",
	Long: `Update checks (and, unless --check is set, applies) updates for
installed applications. With no targets, every installed app is checked
(spec.md §6 "update [<targets…>] [--check] [--refresh-cache] [--force]").`,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "Only report available updates, don't install them")
	updateCmd.Flags().BoolVar(&updateRefreshCache, "refresh-cache", false, "Bypass the release cache")
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "Reapply the latest release even if already up to date")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	opts := orchestrator.Options{
		VerifyDownloads: true,
		RefreshCache:    updateRefreshCache,
		Force:           updateForce && !updateCheck,
	}
	opts.Concurrency = app.Config.MaxConcurrentDownloads

	app.StartSession(len(args))
	summary, err := app.Orchestrator.Update(context.Background(), args, opts, app.Reporter)
	if err != nil {
		return err
	}

	for _, bad := range summary.InvalidApps {
		printErr("%q is not an installed app", bad)
	}

	if updateCheck {
		for _, info := range summary.UpdateInfos {
			if !info.IsSuccess() {
				printErr("%s: %s", info.AppName, info.ErrorReason)
				continue
			}
			if info.HasUpdate {
				fmt.Printf("%s: %s -> %s available\n", info.AppName, info.CurrentVersion, info.LatestVersion)
			} else {
				fmt.Printf("%s: up to date (%s)\n", info.AppName, info.CurrentVersion)
			}
		}
		if len(summary.InvalidApps) > 0 {
			return usageError{fmt.Errorf("%d invalid app name(s)", len(summary.InvalidApps))}
		}
		return nil
	}

	for _, r := range summary.Updated {
		fmt.Printf("updated %s -> %s\n", r.Name, r.InstallPath)
	}
	for _, r := range summary.UpToDate {
		fmt.Printf("%s: already up to date\n", r.AppName)
	}

	if len(summary.Failed) > 0 {
		for _, r := range summary.Failed {
			printErr("failed to update %s: %v", r.Name, r.Error)
		}
		return fmt.Errorf("%d update(s) failed", len(summary.Failed))
	}
	if len(summary.InvalidApps) > 0 {
		return usageError{fmt.Errorf("%d invalid app name(s)", len(summary.InvalidApps))}
	}
	return nil
}
