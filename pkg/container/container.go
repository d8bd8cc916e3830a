// Package container is the "small container object" of spec.md §9 Design
// Notes: it builds every service leaf-first from a loaded Config and owns
// their cleanup, so cmd/my-unicorn (and tests) have exactly one place that
// knows how the pieces wire together.
//
// Grounded on the teacher's cmd/root.go PersistentPreRun (load config once,
// apply platform overrides, then hand every subcommand the same
// already-built dependencies) generalized into an explicit struct instead
// of package-level globals, since this module has no cobra-global
// equivalent to depsConfig/binDir/etc. and an explicit container is more
// testable than reaching through package state.
package container

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/cache"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/catalog"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/config"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/download"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/forge"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/installer"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/orchestrator"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/progress"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/state"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/verify"
)

// Container holds every constructed service for one CLI invocation.
type Container struct {
	Config       config.Config
	Log          *logrus.Logger
	Catalog      *catalog.Catalog
	Cache        *cache.Cache
	Forge        *forge.Client
	Downloads    *download.Service
	Verify       *verify.Verifier
	States       *state.Store
	Installer    *installer.Installer
	Orchestrator *orchestrator.Orchestrator
	Reporter     progress.Reporter

	terminal *progress.TerminalReporter
}

// Options tweaks container construction beyond what Config alone decides.
type Options struct {
	// Debug enables logrus debug-level logging.
	Debug bool
	// Plain installs the no-op reporter even on a TTY, so no progress is
	// rendered (spec.md §4.7 "--no-color/--plain" affordance).
	Plain bool
}

// Build constructs every leaf service and wires them into the composites
// that need them, in dependency order: logging -> config -> catalog ->
// cache/forge (-> release resolver) -> progress -> download -> verify ->
// state -> installer -> orchestrator. Nothing here talks back up the
// chain (spec.md §9: "the orchestrator observes the reporter by reference
// but the reporter does not know about the orchestrator").
func Build(cfg config.Config, opts Options) (*Container, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logrus.New()
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	releaseCache, err := cache.New(cfg.CacheDir, cfg.CacheTTLHours)
	if err != nil {
		return nil, fmt.Errorf("open release cache: %w", err)
	}

	forgeClient := forge.New()
	resolver := orchestrator.NewReleaseResolver(releaseCache, forgeClient)

	var reporter progress.Reporter
	var terminal *progress.TerminalReporter
	if opts.Plain {
		reporter = progress.NewNoopReporter()
	} else {
		terminal = progress.NewTerminalReporter(os.Stdout, log)
		reporter = terminal
	}

	downloads := download.New(reporter)
	verifier := verify.New(downloads)

	states, err := state.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	inst := installer.New(verifier, downloads, states, log,
		installer.WithInstallDir(cfg.InstallDir),
		installer.WithIconDir(cfg.IconDir),
		installer.WithDesktopDir(cfg.DesktopDir),
		installer.WithBackupDir(cfg.BackupDir),
		installer.WithBackupRetention(cfg.BackupRetention),
	)

	orch := orchestrator.New(cat, resolver, downloads, inst, states, log)

	return &Container{
		Config:       cfg,
		Log:          log,
		Catalog:      cat,
		Cache:        releaseCache,
		Forge:        forgeClient,
		Downloads:    downloads,
		Verify:       verifier,
		States:       states,
		Installer:    inst,
		Orchestrator: orch,
		Reporter:     reporter,
		terminal:     terminal,
	}, nil
}

// StartSession begins a progress-reporting session if the container was
// built with an interactive (non-Plain) reporter; a no-op otherwise.
func (c *Container) StartSession(totalOperations int) {
	if c.terminal != nil {
		c.terminal.StartSession(totalOperations)
	}
}

// Close stops the progress render loop, if one was started. Every other
// service owned by Container is stateless or closes implicitly with the
// process (no pooled connections, no open file handles held across calls).
func (c *Container) Close() {
	if c.terminal != nil {
		c.terminal.StopSession()
	}
}
