// Package learning implements the learning path list, the module view and
// the module quiz.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/loader"
)

// PathsAPI is the part of the backend client the path list uses.
type PathsAPI interface {
	LearningPaths(ctx context.Context) ([]api.LearningPath, error)
	Progress(ctx context.Context) (api.UserProgress, error)
}

// AuthState reports whether a user is signed in.
type AuthState interface {
	IsAuthenticated() bool
}

// ModuleEntry is a module in a path, annotated with the user's progress.
type ModuleEntry struct {
	api.ModuleRef
	Completed bool
	Score     *float64
}

// PathEntry is a learning path with its annotated modules in order.
type PathEntry struct {
	ID          api.ID
	Title       string
	Description string
	Level       api.LiteracyLevel
	Modules     []ModuleEntry
}

// PathList is the learning path list view.
type PathList struct {
	auth     AuthState
	paths    *loader.Loader[[]api.LearningPath]
	progress *loader.Loader[api.UserProgress]
}

// OpenPathList mounts the view. Each mount fetches afresh.
func OpenPathList(client PathsAPI, auth AuthState) *PathList {
	return &PathList{
		auth:     auth,
		paths:    loader.New[[]api.LearningPath](client.LearningPaths),
		progress: loader.New[api.UserProgress](client.Progress),
	}
}

// Load fetches the paths and, for a signed-in user, their progress. A
// progress failure only drops the completion marks.
func (v *PathList) Load(ctx context.Context) ([]PathEntry, error) {
	var (
		paths    []api.LearningPath
		progress api.UserProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		paths, err = v.paths.Load(gctx)
		if err != nil {
			return fmt.Errorf("loading learning paths: %w", err)
		}
		return nil
	})
	if v.auth.IsAuthenticated() {
		g.Go(func() error {
			p, err := v.progress.Load(gctx)
			if err != nil {
				slog.Warn("progress unavailable", "error", err)
				return nil
			}
			progress = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return annotate(paths, progress), nil
}

func annotate(paths []api.LearningPath, progress api.UserProgress) []PathEntry {
	entries := make([]PathEntry, 0, len(paths))
	for _, p := range paths {
		mods := make([]ModuleEntry, 0, len(p.Modules))
		for _, m := range p.Modules {
			e := ModuleEntry{ModuleRef: m}
			if mp, ok := progress.ForModule(m.ID); ok {
				e.Completed = mp.Completed
				e.Score = mp.QuizScore
			}
			mods = append(mods, e)
		}
		slices.SortStableFunc(mods, func(a, b ModuleEntry) int { return a.Order - b.Order })
		entries = append(entries, PathEntry{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Level:       p.Level,
			Modules:     mods,
		})
	}
	return entries
}
