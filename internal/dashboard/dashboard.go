// Package dashboard implements the signed-in landing view: a greeting,
// progress statistics and the learning paths to continue with.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/loader"
)

// API is the part of the backend client the dashboard uses.
type API interface {
	LearningPaths(ctx context.Context) ([]api.LearningPath, error)
	Progress(ctx context.Context) (api.UserProgress, error)
}

// UserSource exposes the signed-in user.
type UserSource interface {
	User() (api.User, bool)
}

// Summary is everything the dashboard shows.
type Summary struct {
	Greeting string
	Progress api.UserProgress
	Paths    []api.LearningPath
	// ProgressErr is set when statistics could not be loaded; Progress is
	// then the zero value.
	ProgressErr error
	// PathsErr is set when the learning paths could not be loaded; Paths is
	// then empty.
	PathsErr error
}

// View is the dashboard view.
type View struct {
	users    UserSource
	paths    *loader.Loader[[]api.LearningPath]
	progress *loader.Loader[api.UserProgress]
}

// Open mounts the dashboard.
func Open(client API, users UserSource) *View {
	return &View{
		users:    users,
		paths:    loader.New[[]api.LearningPath](client.LearningPaths),
		progress: loader.New[api.UserProgress](client.Progress),
	}
}

// Load fetches progress and paths concurrently. A failed section is
// recorded on the summary and the rest still renders; only cancellation of
// ctx fails the view.
func (v *View) Load(ctx context.Context) (Summary, error) {
	s := Summary{Greeting: Greeting(v.users)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		paths, err := v.paths.Load(gctx)
		if err != nil {
			slog.Warn("learning paths unavailable", "error", err)
			s.PathsErr = err
			return nil
		}
		s.Paths = paths
		return nil
	})
	g.Go(func() error {
		progress, err := v.progress.Load(gctx)
		if err != nil {
			slog.Warn("progress unavailable", "error", err)
			s.ProgressErr = err
			return nil
		}
		s.Progress = progress
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{Greeting: s.Greeting}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{Greeting: s.Greeting}, err
	}
	return s, nil
}

// Greeting welcomes the signed-in user by display name.
func Greeting(users UserSource) string {
	u, ok := users.User()
	if !ok || u.DisplayName() == "" {
		return "Welcome back!"
	}
	return fmt.Sprintf("Welcome back, %s!", u.DisplayName())
}
