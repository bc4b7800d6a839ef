// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"

	"sdrprov/internal/catalog"
	"sdrprov/internal/config"
	"sdrprov/internal/fetch"
	"sdrprov/internal/hostexec"
	"sdrprov/internal/install"
	"sdrprov/internal/issue"
	"sdrprov/internal/orchestrator"
	"sdrprov/internal/pathreg"
	"sdrprov/internal/pkgmgr"
	"sdrprov/internal/pyenv"
	"sdrprov/internal/srcbuild"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// app is one fully wired provisioning run.
type app struct {
	cfg          *config.Config
	logger       *log.Logger
	store        pathreg.Store
	orchestrator *orchestrator.Orchestrator
}

// newApp loads configuration and wires every component against the host.
func newApp(ctx context.Context, opts *globalOptions, stderr io.Writer) (*app, error) {
	privileged := hostexec.IsPrivileged()
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{
		ConfigFilePath: opts.cfgFile,
		Privileged:     privileged,
	})
	if err != nil {
		return nil, err
	}

	logger := newLogger(stderr, opts.verbose || cfg.UI.Verbose)
	if cfg.Source != "" {
		logger.Debug("loaded configuration", "file", cfg.Source)
	}

	layout := catalog.Layout{InstallRoot: cfg.InstallRoot.String(), Prefix: cfg.Prefix.String()}
	plan := orchestrator.DefaultPlan(runtime.GOOS, layout)
	if cfg.Mirrors.PinsFile != "" {
		pins, err := loadPins(cfg.Mirrors.PinsFile)
		if err != nil {
			return nil, err
		}
		for i := range plan.Tools {
			plan.Tools[i] = plan.Tools[i].WithPins(pins)
		}
	}

	store, err := pathreg.DefaultStore(privileged)
	if err != nil {
		logger.Warn("search path changes will not persist", "err", err)
		store = pathreg.NewMemoryStore()
	}
	registry := pathreg.New(store, pathreg.WithLogger(logger))

	runner := hostexec.NewExecRunner(hostexec.WithLogger(logger))
	packages := pkgmgr.New(runner, pkgmgr.WithLogger(logger))

	fetchOpts := []fetch.Option{
		fetch.WithHTTPClient(http.DefaultClient, cfg.Network.UserAgent),
		fetch.WithAttemptTimeout(cfg.Network.AttemptTimeout),
		fetch.WithRetry(cfg.Network.MaxAttempts, cfg.Network.RetryDelay),
		fetch.WithLogger(logger),
	}
	if s3 := cfg.Mirrors.S3; s3.Enabled() {
		fetchOpts = append(fetchOpts, fetch.WithS3(fetch.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
		}))
	}

	deps := orchestrator.Deps{
		Runner:   runner,
		Packages: packages,
		Fetcher:  fetch.New(fetchOpts...),
		Tools:    install.New(runner, registry, install.WithLogger(logger)),
		Builder: srcbuild.New(runner, srcbuild.NewGitCloner(cfg.Network.CloneTimeout), registry,
			srcbuild.WithLogger(logger)),
		Environment: pyenv.New(runner,
			pyenv.WithVenvDir(cfg.VenvDir.String()),
			pyenv.WithRequirements(cfg.RequirementsFile),
			pyenv.WithPackageInstaller(packages),
			pyenv.WithLogger(logger)),
		SearchPath: registry,
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		orchestrator: orchestrator.New(deps, plan,
			orchestrator.WithRunID(uuid.NewString()),
			orchestrator.WithLogger(logger)),
	}, nil
}

func loadPins(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err == nil {
		defer func() { _ = f.Close() }()
		var pins map[string]string
		if pins, err = fetch.ParsePins(f); err == nil {
			return pins, nil
		}
	}
	return nil, issue.NewErrorContext().
		WithOperation("load mirror pins").
		WithResource(path).
		WithSuggestion("Each line must be '<sha256>  <url>'").
		WithSuggestion("Unset mirrors.pins_file to accept unpinned archives").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(fmt.Errorf("reading %s: %w", path, err)).
		BuildError()
}
