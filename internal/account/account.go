// Package account implements the login and registration forms and the
// profile view.
package account

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/form"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/router"
)

const (
	loginFailed    = "Failed to login"
	registerFailed = "Failed to register"
)

// AuthAPI is the part of the backend client the auth forms use.
type AuthAPI interface {
	Login(ctx context.Context, creds api.Credentials) (api.AuthResponse, error)
	Register(ctx context.Context, reg api.Registration) (api.AuthResponse, error)
}

// SessionWriter stores a successful authentication.
type SessionWriter interface {
	Login(ctx context.Context, token string, user api.User) error
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// RegisterInput is the registration form. Empty level and goal take the
// form's initial selections, BEGINNER and LEARNING.
type RegisterInput struct {
	Email         string            `validate:"required,email"`
	Password      string            `validate:"required"`
	Name          string            `validate:"omitempty,max=100" label:"Display name"`
	LiteracyLevel api.LiteracyLevel `validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED" label:"Literacy level"`
	PrimaryGoal   api.Goal          `validate:"required,oneof=LEARNING INVESTING" label:"Primary goal"`
}

// Forms submits the auth forms. On success the session is updated and the
// client moves to the dashboard; on failure the session is left untouched.
type Forms struct {
	api     AuthAPI
	session SessionWriter
	nav     router.Navigator
	guard   form.Guard
}

// NewForms creates the auth forms.
func NewForms(client AuthAPI, session SessionWriter, nav router.Navigator) *Forms {
	return &Forms{api: client, session: session, nav: nav}
}

// Pending reports whether a submission is in flight.
func (f *Forms) Pending() bool {
	return f.guard.Pending()
}

// Login submits the login form.
func (f *Forms) Login(ctx context.Context, in LoginInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := form.Validate(in); err != nil {
		return err
	}
	return f.submit(ctx, loginFailed, func(ctx context.Context) (api.AuthResponse, error) {
		return f.api.Login(ctx, api.Credentials{Email: in.Email, Password: in.Password})
	})
}

// Register submits the registration form.
func (f *Forms) Register(ctx context.Context, in RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.LiteracyLevel == "" {
		in.LiteracyLevel = api.LevelBeginner
	}
	if in.PrimaryGoal == "" {
		in.PrimaryGoal = api.GoalLearning
	}
	if err := form.Validate(in); err != nil {
		return err
	}
	return f.submit(ctx, registerFailed, func(ctx context.Context) (api.AuthResponse, error) {
		return f.api.Register(ctx, api.Registration{
			Email:         in.Email,
			Password:      in.Password,
			Name:          in.Name,
			LiteracyLevel: in.LiteracyLevel,
			PrimaryGoal:   in.PrimaryGoal,
		})
	})
}

func (f *Forms) submit(ctx context.Context, fallback string, call func(context.Context) (api.AuthResponse, error)) error {
	done, err := f.guard.Begin()
	if err != nil {
		return err
	}
	defer done()

	resp, err := call(ctx)
	if err != nil {
		fe := form.FromAPI(err, fallback)
		slog.Warn("auth form failed", "kind", fe.Kind, "error", err)
		return fe
	}
	if err := f.session.Login(ctx, resp.Token, resp.User); err != nil {
		slog.Error("storing session failed", "error", err)
		return &form.Error{Kind: form.Failed, Message: fallback, Err: err}
	}

	slog.Info("signed in", "user_id", resp.User.ID)
	f.nav.Navigate(router.PathDashboard)
	return nil
}
