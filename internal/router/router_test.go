package router

import (
	"context"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		authenticated bool
		wantRoute     string
		wantRedirect  string
		wantParams    map[string]string
		wantFound     bool
	}{
		{"landing", "/", false, "landing", "", nil, true},
		{"login", "/login", false, "login", "", nil, true},
		{"terms public", "/terms", false, "terms", "", nil, true},
		{"privacy public", "/privacy-policy", false, "privacy", "", nil, true},
		{"dashboard anonymous", "/dashboard", false, "dashboard", PathLogin, nil, true},
		{"dashboard authenticated", "/dashboard", true, "dashboard", "", nil, true},
		{"module params", "/learning/module/42", true, "module", "", map[string]string{"id": "42"}, true},
		{"module anonymous", "/learning/module/42", false, "module", PathLogin, map[string]string{"id": "42"}, true},
		{"register business beats id", "/investments/register-business", true, "register-business", "", nil, true},
		{"investment id", "/investments/7", true, "investment", "", map[string]string{"id": "7"}, true},
		{"trailing slash", "/profile/", true, "profile", "", nil, true},
		{"query string", "/learning?tab=paths", true, "learning", "", nil, true},
		{"missing id", "/learning/module/", true, "", "", nil, false},
		{"unknown", "/admin", true, "", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.path, tt.authenticated)
			if res.Found != tt.wantFound {
				t.Fatalf("Found = %v, want %v", res.Found, tt.wantFound)
			}
			if res.Route.Name != tt.wantRoute {
				t.Errorf("Route = %q, want %q", res.Route.Name, tt.wantRoute)
			}
			if res.Redirect != tt.wantRedirect {
				t.Errorf("Redirect = %q, want %q", res.Redirect, tt.wantRedirect)
			}
			for k, v := range tt.wantParams {
				if res.Params[k] != v {
					t.Errorf("Params[%q] = %q, want %q", k, res.Params[k], v)
				}
			}
		})
	}
}

func TestRoutes_ProtectedSet(t *testing.T) {
	protected := map[string]bool{}
	for _, r := range Routes {
		if r.Protected {
			protected[r.Pattern] = true
		}
	}
	want := []string{PathDashboard, PathLearning, PathModule, PathInvestments, PathInvestment, PathRegisterBusiness, PathProfile}
	if len(protected) != len(want) {
		t.Errorf("protected routes = %d, want %d", len(protected), len(want))
	}
	for _, p := range want {
		if !protected[p] {
			t.Errorf("%s should be protected", p)
		}
	}
}

func TestBuild(t *testing.T) {
	if got := Build(PathModule, map[string]string{"id": "42"}); got != "/learning/module/42" {
		t.Errorf("Build() = %q", got)
	}
	if got := Build(PathDashboard, nil); got != PathDashboard {
		t.Errorf("Build() = %q", got)
	}
}

type fakeGuard struct {
	authenticated bool
	logouts       int
}

func (f *fakeGuard) IsAuthenticated() bool { return f.authenticated }
func (f *fakeGuard) Logout(context.Context) error {
	f.logouts++
	f.authenticated = false
	return nil
}

func TestShell_Open(t *testing.T) {
	guard := &fakeGuard{}
	history := NewHistory(PathLanding)
	shell := NewShell(guard, history)

	shell.Open("/profile")
	if history.Current() != PathLogin {
		t.Errorf("anonymous open: Current() = %q, want /login", history.Current())
	}

	guard.authenticated = true
	shell.Open("/profile/")
	if history.Current() != PathProfile {
		t.Errorf("authenticated open: Current() = %q, want /profile", history.Current())
	}

	before := len(history.Entries())
	if res := shell.Open("/nowhere"); res.Found {
		t.Error("unknown path should not be found")
	}
	if len(history.Entries()) != before {
		t.Error("unknown path should not navigate")
	}
}

func TestShell_LogoutThenProtectedRedirects(t *testing.T) {
	guard := &fakeGuard{authenticated: true}
	history := NewHistory(PathDashboard)
	shell := NewShell(guard, history)

	if err := shell.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if guard.logouts != 1 {
		t.Errorf("logouts = %d, want 1", guard.logouts)
	}
	if history.Current() != PathLogin {
		t.Errorf("Current() = %q, want /login", history.Current())
	}

	res := shell.Open(PathDashboard)
	if res.Redirect != PathLogin {
		t.Errorf("Redirect = %q, want /login", res.Redirect)
	}
}

func TestShell_NavItems(t *testing.T) {
	shell := NewShell(&fakeGuard{}, NewHistory(PathLanding))
	items := shell.NavItems()
	if len(items) != 4 {
		t.Fatalf("len(NavItems()) = %d, want 4", len(items))
	}
	for _, item := range items {
		if res := Resolve(item.Path, true); !res.Found || !res.Route.Protected {
			t.Errorf("nav item %q should point at a protected route", item.Path)
		}
	}
}
