// Package router holds the client's route table and the protected-route
// guard. Resolution is a pure function of the path and the authenticated
// flag; navigation side effects live behind the Navigator interface.
package router

import (
	"strings"
	"sync"
)

// Route paths.
const (
	PathLanding          = "/"
	PathLogin            = "/login"
	PathRegister         = "/register"
	PathTerms            = "/terms"
	PathPrivacy          = "/privacy-policy"
	PathDashboard        = "/dashboard"
	PathLearning         = "/learning"
	PathModule           = "/learning/module/:id"
	PathInvestments      = "/investments"
	PathInvestment       = "/investments/:id"
	PathRegisterBusiness = "/investments/register-business"
	PathProfile          = "/profile"
)

// Route is one entry in the route table.
type Route struct {
	Name      string
	Pattern   string
	Protected bool
}

// Routes is the application route table, in match order. Static segments are
// listed before parameterised siblings so register-business never resolves
// as an investment id.
var Routes = []Route{
	{Name: "landing", Pattern: PathLanding},
	{Name: "login", Pattern: PathLogin},
	{Name: "register", Pattern: PathRegister},
	{Name: "terms", Pattern: PathTerms},
	{Name: "privacy", Pattern: PathPrivacy},
	{Name: "dashboard", Pattern: PathDashboard, Protected: true},
	{Name: "learning", Pattern: PathLearning, Protected: true},
	{Name: "module", Pattern: PathModule, Protected: true},
	{Name: "investments", Pattern: PathInvestments, Protected: true},
	{Name: "register-business", Pattern: PathRegisterBusiness, Protected: true},
	{Name: "investment", Pattern: PathInvestment, Protected: true},
	{Name: "profile", Pattern: PathProfile, Protected: true},
}

// Resolution is the outcome of resolving a path.
type Resolution struct {
	Route    Route
	Params   map[string]string
	Redirect string // non-empty when the caller must navigate elsewhere instead
	Found    bool
}

// Resolve matches path against the route table. A protected route requested
// while not authenticated resolves with Redirect set to the login route.
func Resolve(path string, authenticated bool) Resolution {
	path = clean(path)
	for _, r := range Routes {
		params, ok := match(r.Pattern, path)
		if !ok {
			continue
		}
		res := Resolution{Route: r, Params: params, Found: true}
		if r.Protected && !authenticated {
			res.Redirect = PathLogin
		}
		return res
	}
	return Resolution{}
}

// Build fills :param placeholders in pattern.
func Build(pattern string, params map[string]string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = params[s[1:]]
		}
	}
	return strings.Join(segs, "/")
}

func clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func match(pattern, path string) (map[string]string, bool) {
	if pattern == path {
		return nil, true
	}
	ps := strings.Split(pattern, "/")
	xs := strings.Split(path, "/")
	if len(ps) != len(xs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range ps {
		if strings.HasPrefix(p, ":") {
			if xs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[p[1:]] = xs[i]
			continue
		}
		if p != xs[i] {
			return nil, false
		}
	}
	return params, true
}

// Navigator moves the client to another route.
type Navigator interface {
	Navigate(path string)
}

// History is a Navigator that records every navigation.
type History struct {
	mu    sync.Mutex
	stack []string
}

// NewHistory creates a history starting at start.
func NewHistory(start string) *History {
	return &History{stack: []string{start}}
}

func (h *History) Navigate(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, path)
}

// Current returns the latest location.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return PathLanding
	}
	return h.stack[len(h.stack)-1]
}

// Entries returns all recorded locations, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.stack...)
}
