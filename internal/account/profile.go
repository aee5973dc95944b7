package account

import (
	"context"
	"fmt"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/form"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/loader"
)

const passwordFailed = "Failed to update password"

// ProfileAPI is the part of the backend client the profile view uses.
type ProfileAPI interface {
	Progress(ctx context.Context) (api.UserProgress, error)
	UpdatePassword(ctx context.Context, change api.PasswordChange) error
}

// UserSource exposes the signed-in user.
type UserSource interface {
	User() (api.User, bool)
}

// LogoutFunc ends the session and leaves the protected area.
type LogoutFunc func(ctx context.Context) error

// PasswordInput is the change-password form.
type PasswordInput struct {
	Current string `validate:"required" label:"Current password"`
	New     string `validate:"required,nefield=Current" label:"New password"`
	Confirm string `validate:"required,eqfield=New" label:"Password confirmation"`
}

// Profile is the profile view: account details, learning progress, the
// change-password form and sign-out.
type Profile struct {
	users    UserSource
	api      ProfileAPI
	logout   LogoutFunc
	progress *loader.Loader[api.UserProgress]
	guard    form.Guard
}

// OpenProfile mounts the profile view; progress is fetched on first use.
func OpenProfile(users UserSource, client ProfileAPI, logout LogoutFunc) *Profile {
	return &Profile{
		users:    users,
		api:      client,
		logout:   logout,
		progress: loader.New[api.UserProgress](client.Progress),
	}
}

// User returns the signed-in user.
func (p *Profile) User() (api.User, bool) {
	return p.users.User()
}

// Progress returns the user's progress.
func (p *Profile) Progress(ctx context.Context) (api.UserProgress, error) {
	progress, err := p.progress.Load(ctx)
	if err != nil {
		return api.UserProgress{}, fmt.Errorf("loading progress: %w", err)
	}
	return progress, nil
}

// ChangePassword submits the change-password form.
func (p *Profile) ChangePassword(ctx context.Context, in PasswordInput) error {
	if err := form.Validate(in); err != nil {
		return err
	}
	done, err := p.guard.Begin()
	if err != nil {
		return err
	}
	defer done()

	if err := p.api.UpdatePassword(ctx, api.PasswordChange{CurrentPassword: in.Current, NewPassword: in.New}); err != nil {
		return form.FromAPI(err, passwordFailed)
	}
	return nil
}

// Logout signs out.
func (p *Profile) Logout(ctx context.Context) error {
	return p.logout(ctx)
}
