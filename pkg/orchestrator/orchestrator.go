// Package orchestrator is the top-level install/update coordinator
// (spec.md §4.8): target resolution, bounded-concurrency workers, and
// result aggregation shared by both entry points.
//
// Grounded on terassyi-tomei's internal/installer/engine.go executeLayer
// (golang.org/x/sync/semaphore.NewWeighted guarding a bounded worker
// pool, a sync.WaitGroup plus mutex-protected shared error/result slice,
// per-worker panics/errors caught and converted to structured records
// rather than propagated) — generalized here from tomei's dependency-
// graph layers into my-unicorn's flat, order-independent install/update
// targets (spec.md §9: "no back-references; the orchestrator observes
// the reporter by reference but the reporter does not know about the
// orchestrator").
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/apperrors"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/catalog"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/installer"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/progress"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/selector"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/state"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/version"
)

// Downloader is the narrow dependency needed from pkg/download.
type Downloader interface {
	DownloadAppImage(ctx context.Context, asset types.Asset, dest string) (string, error)
}

// Options configures one Install or Update run.
type Options struct {
	Concurrency     int
	VerifyDownloads bool
	RefreshCache    bool
	Force           bool
	NoDesktop       bool
	DownloadDir     string
}

// DefaultConcurrency is used when Options.Concurrency is unset (spec.md
// §4.8: "default = global config's max_concurrent_downloads").
const DefaultConcurrency = 4

// TargetResult is one target's outcome from an install or update run
// (spec.md §4.8 install step 4: "{success=false, error, target, name?}").
type TargetResult struct {
	Target      string
	Name        string
	Success     bool
	Error       error
	InstallPath string
	// DesktopResult is the desktop entry path written, empty if skipped.
	DesktopResult string
}

// InstallSummary aggregates every target's outcome (spec.md §4.8 install
// step 5).
type InstallSummary struct {
	Results []TargetResult
}

// UpdateSummary aggregates an update run (spec.md §4.8 update step 5:
// "{updated[], failed[], up_to_date[], invalid_apps[], update_infos[]}").
type UpdateSummary struct {
	Updated     []TargetResult
	Failed      []TargetResult
	UpToDate    []types.UpdateInfo
	InvalidApps []string
	UpdateInfos []types.UpdateInfo
}

// noopVerifier unconditionally passes verification, used to honor a
// `--no-verify` request regardless of what pkg/verify would otherwise
// decide (spec.md §6 "install ... --no-verify").
type noopVerifier struct{}

func (noopVerifier) Verify(_ context.Context, _ string, _ types.Asset, _ types.Release, config types.AppConfig) (types.VerificationResult, error) {
	return types.VerificationResult{
		Passed:        true,
		Methods:       map[string]types.MethodResult{},
		Warning:       "verification skipped (--no-verify)",
		UpdatedConfig: config,
	}, nil
}

// Orchestrator wires the leaf services together: release resolution,
// asset download, and the post-download pipeline.
type Orchestrator struct {
	catalog   *catalog.Catalog
	releases  ReleaseResolver
	downloads Downloader
	install   *installer.Installer
	states    *state.Store
	log       *logrus.Logger
}

// New builds an Orchestrator from its already-constructed leaf services
// (spec.md §9: "constructing leaves first and injecting them into
// composites").
func New(cat *catalog.Catalog, releases ReleaseResolver, downloads Downloader, install *installer.Installer, states *state.Store, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{catalog: cat, releases: releases, downloads: downloads, install: install, states: states, log: log}
}

func (o *Orchestrator) concurrency(opts Options) int64 {
	if opts.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return int64(opts.Concurrency)
}

func (o *Orchestrator) installerFor(opts Options) *installer.Installer {
	in := o.install
	if !opts.VerifyDownloads {
		in = in.WithVerifier(noopVerifier{})
	}
	if opts.NoDesktop {
		in = in.WithSkipDesktop(true)
	}
	return in
}

// Install runs spec.md §4.8's install entry point over a raw (possibly
// comma-separated) target list.
func (o *Orchestrator) Install(ctx context.Context, rawTargets []string, opts Options, reporter progress.Reporter) InstallSummary {
	targets := expandTargets(rawTargets)
	sem := semaphore.NewWeighted(o.concurrency(opts))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []TargetResult
	)

	for _, target := range targets {
		target := target
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			results = append(results, TargetResult{Target: target, Success: false, Error: err})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			result := o.installOne(ctx, target, opts, reporter)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return InstallSummary{Results: results}
}

func (o *Orchestrator) installOne(ctx context.Context, target string, opts Options, reporter progress.Reporter) TargetResult {
	config, err := resolveTarget(o.catalog, target)
	if err != nil {
		return TargetResult{Target: target, Success: false, Error: err}
	}

	var catalogRef *types.CatalogRef
	if config.Source == types.SourceCatalog {
		catalogRef = &types.CatalogRef{Owner: config.Owner, Repo: config.Repo, Channel: config.Channel}
	}

	release, err := o.releases.Resolve(ctx, config.Owner, config.Repo, config.Channel, opts.RefreshCache)
	if err != nil {
		return TargetResult{Target: target, Name: config.Name, Success: false, Error: &apperrors.NetworkError{Op: "resolve release", Err: err}}
	}

	asset := selector.SelectAppImageForPlatform(release, config.Naming.PreferredSuffixes, config.Source)
	if asset == nil {
		return TargetResult{Target: target, Name: config.Name, Success: false, Error: &apperrors.ValidationError{Target: target, Reason: "no compatible AppImage asset found in latest release"}}
	}

	dest := filepath.Join(downloadDir(opts), sanitizeDownloadName(asset.Name))
	downloaded, err := o.downloads.DownloadAppImage(ctx, *asset, dest)
	if err != nil {
		return TargetResult{Target: target, Name: config.Name, Success: false, Error: &apperrors.NetworkError{Op: "download asset", Err: err}}
	}

	result := o.installerFor(opts).Run(ctx, installer.OperationInstall, downloaded, *asset, release, config, catalogRef, reporter)
	return TargetResult{Target: target, Name: config.Name, Success: result.Success, Error: result.Error, InstallPath: result.InstallPath, DesktopResult: result.DesktopResult}
}

// Update runs spec.md §4.8's update entry point. An empty targetNames
// list means "all installed apps".
func (o *Orchestrator) Update(ctx context.Context, targetNames []string, opts Options, reporter progress.Reporter) (UpdateSummary, error) {
	installedNames, err := o.states.List()
	if err != nil {
		return UpdateSummary{}, fmt.Errorf("list installed apps: %w", err)
	}

	names, invalid := validateUpdateTargets(targetNames, installedNames)
	for _, bad := range invalid {
		if suggestion := suggestInstalledName(bad, installedNames); suggestion != "" {
			o.log.Warnf("%q is not an installed app (did you mean %q?)", bad, suggestion)
		} else {
			o.log.Warnf("%q is not an installed app", bad)
		}
	}

	var infos []types.UpdateInfo
	var toUpdate []string
	var upToDate []types.UpdateInfo
	for _, name := range names {
		info := o.checkUpdate(ctx, name, opts)
		infos = append(infos, info)
		if !info.IsSuccess() {
			continue
		}
		if info.HasUpdate {
			toUpdate = append(toUpdate, name)
		} else {
			upToDate = append(upToDate, info)
		}
	}

	if len(toUpdate) == 0 && !opts.Force {
		return UpdateSummary{UpToDate: upToDate, InvalidApps: invalid, UpdateInfos: infos}, nil
	}
	if opts.Force {
		// Force re-applies even apps already reported up to date.
		toUpdate = lo.Uniq(append(toUpdate, lo.Map(upToDate, func(i types.UpdateInfo, _ int) string { return i.AppName })...))
		upToDate = nil
	}

	sem := semaphore.NewWeighted(o.concurrency(opts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		updated  []TargetResult
		failed   []TargetResult
	)

	for _, name := range toUpdate {
		name := name
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			failed = append(failed, TargetResult{Target: name, Name: name, Success: false, Error: err})
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			result := o.updateOne(ctx, name, opts, reporter)
			mu.Lock()
			if result.Success {
				updated = append(updated, result)
			} else {
				failed = append(failed, result)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return UpdateSummary{Updated: updated, Failed: failed, UpToDate: upToDate, InvalidApps: invalid, UpdateInfos: infos}, nil
}

func (o *Orchestrator) checkUpdate(ctx context.Context, name string, opts Options) types.UpdateInfo {
	st, err := o.states.Load(name)
	if err != nil || st == nil {
		return types.UpdateInfo{AppName: name, LatestVersion: types.UnknownVersion, ErrorReason: "state not found"}
	}

	config, err := o.configFor(*st)
	if err != nil {
		return types.UpdateInfo{AppName: name, CurrentVersion: st.InstalledVersion, LatestVersion: types.UnknownVersion, ErrorReason: err.Error()}
	}

	release, err := o.releases.Resolve(ctx, config.Owner, config.Repo, config.Channel, opts.RefreshCache)
	if err != nil {
		return types.UpdateInfo{AppName: name, CurrentVersion: st.InstalledVersion, LatestVersion: types.UnknownVersion, ErrorReason: err.Error()}
	}

	return types.UpdateInfo{
		AppName:        name,
		CurrentVersion: st.InstalledVersion,
		LatestVersion:  release.Version,
		HasUpdate:      version.LessThan(st.InstalledVersion, release.Version),
		Prerelease:     release.Prerelease,
		OriginalTag:    release.Tag,
		CachedRelease:  &release,
		CachedConfig:   &config,
	}
}

func (o *Orchestrator) updateOne(ctx context.Context, name string, opts Options, reporter progress.Reporter) TargetResult {
	info := o.checkUpdate(ctx, name, opts)
	if !info.IsSuccess() {
		return TargetResult{Target: name, Name: name, Success: false, Error: fmt.Errorf("%s", info.ErrorReason)}
	}
	config := *info.CachedConfig
	release := *info.CachedRelease

	var catalogRef *types.CatalogRef
	if config.Source == types.SourceCatalog {
		catalogRef = &types.CatalogRef{Owner: config.Owner, Repo: config.Repo, Channel: config.Channel}
	}

	asset := selector.SelectAppImageForPlatform(release, config.Naming.PreferredSuffixes, config.Source)
	if asset == nil {
		return TargetResult{Target: name, Name: name, Success: false, Error: &apperrors.ValidationError{Target: name, Reason: "no compatible AppImage asset found in latest release"}}
	}

	dest := filepath.Join(downloadDir(opts), sanitizeDownloadName(asset.Name))
	downloaded, err := o.downloads.DownloadAppImage(ctx, *asset, dest)
	if err != nil {
		return TargetResult{Target: name, Name: name, Success: false, Error: &apperrors.NetworkError{Op: "download asset", Err: err}}
	}

	result := o.installerFor(opts).Run(ctx, installer.OperationUpdate, downloaded, *asset, release, config, catalogRef, reporter)
	return TargetResult{Target: name, Name: name, Success: result.Success, Error: result.Error, InstallPath: result.InstallPath, DesktopResult: result.DesktopResult}
}

// Remove implements spec.md §6's `remove <app>` entry point.
func (o *Orchestrator) Remove(appName string) error {
	return o.install.Remove(appName)
}

// List implements spec.md §6's `list` entry point: every installed app's
// persisted state, in sorted name order (state.Store.List's order).
func (o *Orchestrator) List() ([]types.AppState, error) {
	names, err := o.states.List()
	if err != nil {
		return nil, fmt.Errorf("list installed apps: %w", err)
	}
	states := make([]types.AppState, 0, len(names))
	for _, name := range names {
		st, err := o.states.Load(name)
		if err != nil || st == nil {
			continue
		}
		states = append(states, *st)
	}
	return states, nil
}

// configFor rebuilds the effective AppConfig for an installed app from
// its AppState (catalog re-lookup, or the persisted ad-hoc Overrides).
func (o *Orchestrator) configFor(st types.AppState) (types.AppConfig, error) {
	if st.Source == types.SourceCatalog {
		if cfg, ok := o.catalog.Lookup(st.Name); ok {
			return cfg, nil
		}
		if st.CatalogRef != nil {
			return types.DefaultAppConfig(st.Name, st.CatalogRef.Owner, st.CatalogRef.Repo), nil
		}
		return types.AppConfig{}, fmt.Errorf("catalog entry for %s no longer exists", st.Name)
	}
	if st.Overrides != nil {
		return *st.Overrides, nil
	}
	return types.AppConfig{}, fmt.Errorf("missing overrides for url-sourced app %s", st.Name)
}

// validateUpdateTargets implements spec.md §4.8 update step 1:
// case-insensitive match against installed apps, empty list meaning all.
func validateUpdateTargets(requested, installed []string) (valid []string, invalid []string) {
	if len(requested) == 0 {
		return installed, nil
	}
	byLower := make(map[string]string, len(installed))
	for _, name := range installed {
		byLower[strings.ToLower(name)] = name
	}
	for _, want := range requested {
		if canonical, ok := byLower[strings.ToLower(strings.TrimSpace(want))]; ok {
			valid = append(valid, canonical)
		} else {
			invalid = append(invalid, want)
		}
	}
	return valid, invalid
}

func downloadDir(opts Options) string {
	if opts.DownloadDir != "" {
		return opts.DownloadDir
	}
	return "."
}

func sanitizeDownloadName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}
