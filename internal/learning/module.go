package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/loader"
)

// ModuleAPI is the part of the backend client the module view uses.
type ModuleAPI interface {
	Module(ctx context.Context, id api.ID) (api.Module, error)
	QuizAPI
}

// ModuleDetail is the module view.
type ModuleDetail struct {
	id     api.ID
	client ModuleAPI
	module *loader.Loader[api.Module]
}

// OpenModule mounts the view for module id.
func OpenModule(client ModuleAPI, id api.ID) *ModuleDetail {
	return &ModuleDetail{
		id:     id,
		client: client,
		module: loader.New[api.Module](func(ctx context.Context) (api.Module, error) {
			return client.Module(ctx, id)
		}),
	}
}

// Load fetches the module.
func (v *ModuleDetail) Load(ctx context.Context) (api.Module, error) {
	m, err := v.module.Load(ctx)
	if err != nil {
		return api.Module{}, fmt.Errorf("loading module %s: %w", v.id, err)
	}
	return m, nil
}

// Quiz returns a fresh quiz for the loaded module, in the content phase.
func (v *ModuleDetail) Quiz(ctx context.Context) (*Quiz, error) {
	m, err := v.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewQuiz(v.client, m), nil
}

// EmbedURL turns a video watch link into its embeddable form.
func EmbedURL(videoURL string) string {
	return strings.Replace(videoURL, "watch?v=", "embed/", 1)
}
