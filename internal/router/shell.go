package router

import (
	"context"
	"log/slog"
)

// Guard is the part of the session the shell needs.
type Guard interface {
	IsAuthenticated() bool
	Logout(ctx context.Context) error
}

// NavItem is an entry in the navigation bar of protected pages.
type NavItem struct {
	Label string
	Path  string
}

// Shell wraps protected pages: it owns the navigation bar and the logout
// trigger, and gates every navigation through Resolve.
type Shell struct {
	guard Guard
	nav   Navigator
}

// NewShell creates a shell. It panics if guard or nav is nil.
func NewShell(guard Guard, nav Navigator) *Shell {
	if guard == nil || nav == nil {
		panic("router: shell needs a guard and a navigator")
	}
	return &Shell{guard: guard, nav: nav}
}

// NavItems returns the navigation bar entries.
func (s *Shell) NavItems() []NavItem {
	return []NavItem{
		{Label: "Dashboard", Path: PathDashboard},
		{Label: "Learning", Path: PathLearning},
		{Label: "Investments", Path: PathInvestments},
		{Label: "Profile", Path: PathProfile},
	}
}

// Open resolves path against the current authentication state and navigates
// to it, or to the redirect target when the route is protected.
func (s *Shell) Open(path string) Resolution {
	res := Resolve(path, s.guard.IsAuthenticated())
	switch {
	case !res.Found:
		slog.Debug("route not found", "path", path)
	case res.Redirect != "":
		s.nav.Navigate(res.Redirect)
	default:
		s.nav.Navigate(clean(path))
	}
	return res
}

// Logout ends the session and returns to the login route. Navigation
// happens even if clearing the persisted session failed, since in-memory
// state is already gone.
func (s *Shell) Logout(ctx context.Context) error {
	err := s.guard.Logout(ctx)
	s.nav.Navigate(PathLogin)
	return err
}
