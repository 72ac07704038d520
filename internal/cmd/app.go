package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/config"
	"github.com/deskctl/deskctl/internal/desktype"
	"github.com/deskctl/deskctl/internal/network"
	"github.com/deskctl/deskctl/internal/proc"
	"github.com/deskctl/deskctl/internal/session"
	"github.com/deskctl/deskctl/internal/ui"
	"github.com/deskctl/deskctl/internal/verify"
)

// app bundles the per-invocation state commands work against.
type app struct {
	cfg      *config.Config
	types    *desktype.Registry
	policy   *network.Policy
	host     *session.Host
	sessions *session.Registry
}

// stdoutTTY reports whether output goes to a terminal. Tests override it.
var stdoutTTY = func() bool { return ui.IsTTY(os.Stdout) }

// loadApp loads configuration and builds the type and session registries.
func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	Debug("Config loaded (root %s)", cfg.Root)

	accessHosts, err := network.ParseAccessHosts(cfg.AccessHosts)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidSetting, err, "invalid access_hosts")
	}
	policy := &network.Policy{
		AccessHosts:      accessHosts,
		ReachableProgram: filepath.Join(cfg.Root, "libexec", "reachable"),
		PrimaryIPProgram: filepath.Join(cfg.Root, "libexec", "get-primary-ip"),
	}

	types := desktype.NewRegistry(desktype.Options{
		TypePaths:       cfg.TypePaths,
		GlobalStatePath: cfg.GlobalStatePath,
		UserStatePath:   cfg.UserStatePath,
		Privileged:      cfg.Privileged(),
		DefaultName:     cfg.DesktopType,
		Logger:          logger,
	})
	Debug("Discovered %d desktop type(s)", len(types.All()))

	host := &session.Host{
		Config:  cfg,
		Types:   types,
		Network: policy,
		Procs:   proc.OSTable{},
		Logger:  logger,
	}
	sessions, err := session.NewRegistry(host)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		types:    types,
		policy:   policy,
		host:     host,
		sessions: sessions,
	}, nil
}

// resolveType returns the named type, or the default type when name is
// empty.
func (a *app) resolveType(name string) (*desktype.Type, error) {
	if name == "" {
		return a.types.Default()
	}
	return a.types.Get(name)
}

// runner builds the script runner for verify and prepare.
func (a *app) runner(rep verify.Reporter) *verify.Runner {
	return &verify.Runner{
		LogDir:   a.cfg.LogDir(),
		Env:      proc.CleanEnv(os.Environ()),
		Reporter: rep,
		Logger:   logger,
	}
}
