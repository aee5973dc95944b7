package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/cache"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/config"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/router"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/session"
)

// errSignIn is returned when a command needs a protected page while signed out.
var errSignIn = errors.New("please sign in first: wealthbuilder login -email <email>")

// app is the process-wide state every command shares: one session, one
// backend client and the navigation history they drive.
type app struct {
	cfg      *config.Config
	out      io.Writer
	session  *session.Session
	client   *api.Client
	history  *router.History
	shell    *router.Shell
	registry *prometheus.Registry
	closers  []func()

	// storeErr is set when the configured store is unusable and the
	// session fell back to memory. Commands that sign in report it.
	storeErr error
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, out: out, registry: prometheus.NewRegistry()}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.session = session.New(store)
	if err := a.session.Restore(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.client = api.NewClient(cfg.API.BaseURL,
		api.WithTokenSource(a.session),
		api.WithTimeout(cfg.API.Timeout),
		api.WithProgressPath(cfg.API.ProgressPath),
		api.WithMetrics(api.NewMetrics(a.registry)),
	)
	a.history = router.NewHistory(router.PathLanding)
	a.shell = router.NewShell(a.session, a.history)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.Session.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StoreFile:
		if a.cfg.Session.Secret == "" {
			a.storeErr = fmt.Errorf("WB_SESSION_SECRET is required to keep a session in %s", a.cfg.Session.File)
			return session.NewMemoryStore(), nil
		}
		return session.NewFileStore(a.cfg.Session.File, a.cfg.Session.Secret)
	case config.StoreRedis:
		c, err := cache.New(ctx, a.cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting session cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		return session.NewRedisStore(c, a.cfg.Session.Key)
	default:
		return nil, fmt.Errorf("unknown session store %q", a.cfg.Session.Store)
	}
}

// open navigates to path through the shell and returns the route params.
func (a *app) open(path string) (map[string]string, error) {
	res := a.shell.Open(path)
	switch {
	case !res.Found:
		return nil, fmt.Errorf("no page at %s", path)
	case res.Redirect != "":
		return nil, errSignIn
	}
	return res.Params, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
