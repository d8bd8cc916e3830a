// Package installer runs the fixed post-download pipeline (spec.md §4.6):
// verify -> chmod+x -> backup prior (update only) -> move into place ->
// extract/download icon -> write desktop entry -> write state -> prune
// backups. Steps 1-4 are blocking; steps 5-8 are best-effort and recorded
// in the result rather than aborting the install.
//
// Grounded on the teacher's pkg/installer/installer.go: the overall
// "download -> verify -> place -> chmod" shape, its functional-options
// Install configuration, and its tolerant-of-partial-failure philosophy
// (flanksource's StrictChecksum/non-strict fallback generalizes here into
// "steps 5-8 never fail the install"). The teacher's plugin/manager
// registry composition has no equivalent: this package installs exactly
// one artifact shape (an AppImage) rather than dispatching across
// package-manager backends, so that indirection is dropped. The
// rename target is evaluated through the teacher's gomplate template
// entry point rather than its CEL pipeline environment (see rename.go).
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/apperrors"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/desktop"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/progress"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/squashfs"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/state"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

// Operation distinguishes a fresh install from an update (spec.md §4.6:
// "operation type INSTALL or UPDATE").
type Operation string

const (
	OperationInstall Operation = "install"
	OperationUpdate  Operation = "update"
)

// DefaultBackupRetention is the default backup count kept per app
// (spec.md §4.6 step 8).
const DefaultBackupRetention = 3

// Verifier is the narrow dependency installer needs from pkg/verify.
type Verifier interface {
	Verify(ctx context.Context, filePath string, asset types.Asset, release types.Release, config types.AppConfig) (types.VerificationResult, error)
}

// IconDownloader is the narrow dependency installer needs from
// pkg/download for icon-method=download.
type IconDownloader interface {
	DownloadFile(ctx context.Context, url, dest string) error
}

// Options configures directory locations and knobs for the pipeline.
// Grounded on the teacher's InstallOptions functional-options shape,
// narrowed to the fields this domain's fixed pipeline actually needs.
type Options struct {
	InstallDir      string
	IconDir         string
	DesktopDir      string
	BackupDir       string
	BackupRetention int
}

// Option is a functional option for constructing an Installer.
type Option func(*Options)

// WithInstallDir sets the directory AppImages are moved into.
func WithInstallDir(dir string) Option { return func(o *Options) { o.InstallDir = dir } }

// WithIconDir sets the directory extracted/downloaded icons are written to.
func WithIconDir(dir string) Option { return func(o *Options) { o.IconDir = dir } }

// WithDesktopDir sets the directory `.desktop` entries are written to.
func WithDesktopDir(dir string) Option { return func(o *Options) { o.DesktopDir = dir } }

// WithBackupDir sets the directory prior versions are moved into on update.
func WithBackupDir(dir string) Option { return func(o *Options) { o.BackupDir = dir } }

// WithBackupRetention overrides the default backup retention count.
func WithBackupRetention(n int) Option { return func(o *Options) { o.BackupRetention = n } }

// Installer runs the post-download pipeline for one AppImage at a time.
type Installer struct {
	verifier    Verifier
	icons       IconDownloader
	states      *state.Store
	opts        Options
	log         *logrus.Logger
	skipDesktop bool
}

// New builds an Installer.
func New(verifier Verifier, icons IconDownloader, states *state.Store, log *logrus.Logger, opts ...Option) *Installer {
	o := Options{BackupRetention: DefaultBackupRetention}
	for _, apply := range opts {
		apply(&o)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Installer{verifier: verifier, icons: icons, states: states, opts: o, log: log}
}

// WithVerifier returns a shallow copy of in using a different Verifier,
// letting the orchestrator swap in a skip-everything verifier for a
// single `--no-verify` run without reconstructing icon/state/options
// wiring (spec.md §6 install flag "--no-verify").
func (in *Installer) WithVerifier(v Verifier) *Installer {
	clone := *in
	clone.verifier = v
	return &clone
}

// WithSkipDesktop returns a shallow copy of in that skips step 6 (desktop
// entry writing) entirely, for the `--no-desktop` install option (spec.md
// §4.8 "options (concurrent, verify_downloads, download_dir, no_desktop,
// ...)").
func (in *Installer) WithSkipDesktop(skip bool) *Installer {
	clone := *in
	clone.skipDesktop = skip
	return &clone
}

// Result is the post-download processor's outcome (spec.md §4.6 final
// paragraph).
type Result struct {
	Success             bool
	InstallPath         string
	VerificationResult  types.VerificationResult
	IconResult          types.IconRecord
	ConfigResult        types.AppConfig
	DesktopResult       string // path written, empty if skipped/failed
	Warnings            []string
	Error               error
}

var renameSanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeRename implements spec.md §4.6 step 4's filename sanitization.
func sanitizeRename(name string) string {
	s := renameSanitizeRe.ReplaceAllString(name, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "app"
	}
	return s
}

// targetFilename resolves config.Naming.RenameTo to a final, sanitized
// install filename. A rename_to value that looks like an expression
// (references version/tag or uses a CEL operator) is evaluated against
// the release being installed; anything else — the common case, a plain
// app name — passes straight through as a literal, so a catalog entry
// author never has to think about CEL unless they want the template
// power it gives them.
func (in *Installer) targetFilename(config types.AppConfig, release types.Release) string {
	base := config.Naming.RenameTo
	if base == "" {
		base = config.Name
	} else if looksLikeExpression(base) {
		evaluated, err := evaluateRenameExpr(base, config.Name, release.Version, release.Tag)
		if err != nil {
			in.log.WithError(err).Warnf("rename expression for %s fell back to literal", config.Name)
		} else {
			base = evaluated
		}
	}
	return sanitizeRename(base) + ".AppImage"
}

// Run executes the fixed pipeline for one target. downloadedPath is the
// temp file produced by pkg/download; asset/release describe what was
// downloaded; config is the effective AppConfig (catalog or ad-hoc URL).
func (in *Installer) Run(ctx context.Context, op Operation, downloadedPath string, asset types.Asset, release types.Release, config types.AppConfig, catalogRef *types.CatalogRef, reporter progress.Reporter) Result {
	result := Result{ConfigResult: config}

	// Step 1: verify.
	vr, err := in.verifier.Verify(ctx, downloadedPath, asset, release, config)
	if err != nil {
		result.Error = err
		return result
	}
	result.VerificationResult = vr
	result.ConfigResult = vr.UpdatedConfig
	if vr.Warning != "" {
		result.Warnings = append(result.Warnings, vr.Warning)
	}

	// Step 2: chmod +x.
	if err := os.Chmod(downloadedPath, 0o755); err != nil {
		result.Error = &apperrors.InstallError{App: config.Name, Step: "chmod", Err: err}
		return result
	}

	installPath := filepath.Join(in.opts.InstallDir, in.targetFilename(result.ConfigResult, release))

	// Step 3: backup prior (update only).
	if op == OperationUpdate {
		if err := in.backupPrior(config.Name, installPath); err != nil {
			result.Error = &apperrors.InstallError{App: config.Name, Step: "backup-prior", Err: err}
			return result
		}
	}

	// Step 4: move into place.
	if err := in.moveIntoPlace(downloadedPath, installPath); err != nil {
		result.Error = &apperrors.InstallError{App: config.Name, Step: "move-into-place", Err: err}
		return result
	}
	result.InstallPath = installPath
	result.Success = true

	// Step 5: extract/download icon (best-effort).
	result.IconResult = in.handleIcon(ctx, config, installPath)

	// Step 6: write desktop entry (best-effort, skippable via --no-desktop).
	if !in.skipDesktop {
		result.DesktopResult = in.writeDesktopEntry(config, installPath, result.IconResult, release.Version)
	}

	// Step 7: write AppState (best-effort relative to install success, but
	// logged loudly since a missing state file breaks update/list/remove).
	in.writeState(op, config.Source, catalogRef, &config, release.Version, installPath, vr, result.IconResult)

	// Step 8: prune backups (update only, only after success).
	if op == OperationUpdate {
		if removed, err := in.pruneBackups(config.Name); err != nil {
			in.log.WithError(err).Warnf("prune backups for %s", config.Name)
		} else if removed > 0 {
			in.log.Debugf("pruned %d old backup(s) for %s", removed, config.Name)
		}
	}

	return result
}

func (in *Installer) backupPrior(appName, installPath string) error {
	prior, err := in.states.Load(appName)
	if err != nil {
		return err
	}
	if prior == nil || prior.InstallPath == "" {
		return nil
	}
	if _, err := os.Stat(prior.InstallPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(in.opts.BackupDir, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	backupName := fmt.Sprintf("%s.%s.bak", filepath.Base(prior.InstallPath), time.Now().UTC().Format("20060102T150405Z"))
	backupPath := filepath.Join(in.opts.BackupDir, backupName)

	// Move, never copy, so the old inode is gone (spec.md §4.6 step 3).
	if err := os.Rename(prior.InstallPath, backupPath); err != nil {
		return fmt.Errorf("move prior install to backup: %w", err)
	}
	return nil
}

func (in *Installer) moveIntoPlace(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create install directory: %w", err)
	}
	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (in *Installer) handleIcon(ctx context.Context, config types.AppConfig, installPath string) types.IconRecord {
	switch config.Icon.Method {
	case types.IconNone, "":
		return types.IconRecord{Installed: false, Method: types.IconNone}
	case types.IconDownload:
		return in.downloadIcon(ctx, config)
	case types.IconExtraction:
		return in.extractIcon(config, installPath)
	default:
		return types.IconRecord{Installed: false, Method: config.Icon.Method, Error: fmt.Sprintf("unknown icon method %q", config.Icon.Method)}
	}
}

func (in *Installer) downloadIcon(ctx context.Context, config types.AppConfig) types.IconRecord {
	if config.Icon.DownloadURL == "" {
		return types.IconRecord{Installed: false, Method: types.IconDownload, Error: "no download_url configured"}
	}
	if err := os.MkdirAll(in.opts.IconDir, 0o755); err != nil {
		return types.IconRecord{Installed: false, Method: types.IconDownload, Error: err.Error()}
	}
	filename := config.Icon.Filename
	if filename == "" {
		filename = sanitizeRename(config.Name) + ".png"
	}
	dest := filepath.Join(in.opts.IconDir, filename)
	if err := in.icons.DownloadFile(ctx, config.Icon.DownloadURL, dest); err != nil {
		return types.IconRecord{Installed: false, Method: types.IconDownload, Error: err.Error()}
	}
	return types.IconRecord{Installed: true, Path: dest, Method: types.IconDownload}
}

func (in *Installer) extractIcon(config types.AppConfig, installPath string) types.IconRecord {
	f, err := os.Open(installPath)
	if err != nil {
		return types.IconRecord{Installed: false, Method: types.IconExtraction, Error: err.Error()}
	}
	defer f.Close()

	img, err := squashfs.Open(f)
	if err != nil {
		return types.IconRecord{Installed: false, Method: types.IconExtraction, Error: err.Error()}
	}
	_, data, err := img.FindIcon()
	if err != nil {
		return types.IconRecord{Installed: false, Method: types.IconExtraction, Error: err.Error()}
	}

	if err := os.MkdirAll(in.opts.IconDir, 0o755); err != nil {
		return types.IconRecord{Installed: false, Method: types.IconExtraction, Error: err.Error()}
	}
	dest := filepath.Join(in.opts.IconDir, sanitizeRename(config.Name)+".png")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return types.IconRecord{Installed: false, Method: types.IconExtraction, Error: err.Error()}
	}
	return types.IconRecord{Installed: true, Path: dest, Method: types.IconExtraction}
}

func (in *Installer) writeDesktopEntry(config types.AppConfig, installPath string, icon types.IconRecord, version string) string {
	iconPath := icon.Path
	absInstall, err := filepath.Abs(installPath)
	if err != nil {
		absInstall = installPath
	}
	entry := desktop.Entry{
		AppName:     config.Name,
		DisplayName: displayName(config.Name),
		ExecPath:    absInstall,
		IconPath:    iconPath,
		Categories:  config.Categories,
		Version:     version,
	}
	path, err := desktop.Write(in.opts.DesktopDir, entry)
	if err != nil {
		in.log.WithError(err).Warnf("write desktop entry for %s", config.Name)
		return ""
	}
	return path
}

func displayName(appName string) string {
	if appName == "" {
		return appName
	}
	return strings.ToUpper(appName[:1]) + appName[1:]
}

func (in *Installer) writeState(op Operation, source types.SourceKind, catalogRef *types.CatalogRef, config *types.AppConfig, version, installPath string, vr types.VerificationResult, icon types.IconRecord) {
	var overrides *types.AppConfig
	if source == types.SourceURL {
		overrides = config
	}
	st := state.NewInstalledState(config.Name, source, catalogRef, overrides, version, installPath, vr, icon)
	if err := in.states.Save(st); err != nil {
		in.log.WithError(err).Errorf("write state for %s", config.Name)
	}
}

// Remove deletes an installed app's AppImage, icon, desktop entry, and
// state record (spec.md §6 "remove <app> — deletes installed file, state,
// icon, and desktop entry"). Icon/desktop removal is best-effort, logged
// rather than fatal, matching the pipeline's own best-effort steps 5-6.
func (in *Installer) Remove(appName string) error {
	st, err := in.states.Load(appName)
	if err != nil {
		return fmt.Errorf("load state for %s: %w", appName, err)
	}
	if st == nil {
		return &apperrors.ValidationError{Target: appName, Reason: "not installed"}
	}

	if st.InstallPath != "" {
		if err := os.Remove(st.InstallPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove installed file for %s: %w", appName, err)
		}
	}
	if st.Icon.Installed && st.Icon.Path != "" {
		if err := os.Remove(st.Icon.Path); err != nil && !os.IsNotExist(err) {
			in.log.WithError(err).Warnf("remove icon for %s", appName)
		}
	}
	desktopPath := filepath.Join(in.opts.DesktopDir, desktop.SanitizeFilename(appName)+".desktop")
	if err := os.Remove(desktopPath); err != nil && !os.IsNotExist(err) {
		in.log.WithError(err).Warnf("remove desktop entry for %s", appName)
	}
	return in.states.Delete(appName)
}

func (in *Installer) pruneBackups(appName string) (int, error) {
	entries, err := os.ReadDir(in.opts.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	prefix := sanitizeRename(appName)
	type backupFile struct {
		path    string
		modTime time.Time
	}
	var matches []backupFile
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if !strings.HasPrefix(de.Name(), prefix) || !strings.HasSuffix(de.Name(), ".bak") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		matches = append(matches, backupFile{path: filepath.Join(in.opts.BackupDir, de.Name()), modTime: info.ModTime()})
	}

	keep := in.opts.BackupRetention
	if keep <= 0 {
		keep = DefaultBackupRetention
	}
	if len(matches) <= keep {
		return 0, nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].modTime.After(matches[j].modTime) })
	removed := 0
	for _, m := range matches[keep:] {
		if err := os.Remove(m.path); err == nil {
			removed++
		}
	}
	return removed, nil
}
