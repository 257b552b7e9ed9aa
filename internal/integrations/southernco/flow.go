package southernco

import (
	"context"
	"errors"
	"strings"

	"github.com/Lash-L/hubcore/internal/flow"
)

// Authenticator is the login surface the pairing flow needs.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// AuthFactory builds an authenticator for submitted credentials, so
// the flow can validate them before creating the entry.
type AuthFactory func(username, password string) Authenticator

// ConfigFlow is the username/password pairing wizard.
type ConfigFlow struct {
	newAuth AuthFactory
}

// NewConfigFlow creates a pairing flow over the authenticator factory.
func NewConfigFlow(newAuth AuthFactory) *ConfigFlow {
	return &ConfigFlow{newAuth: newAuth}
}

// NewFlowFactory returns a flow.Factory validating credentials against
// the vendor API at baseURL.
func NewFlowFactory(baseURL string) flow.Factory {
	return func() flow.Flow {
		return NewConfigFlow(func(username, password string) Authenticator {
			return NewClient(baseURL, username, password)
		})
	}
}

func credentialsSchema() []flow.Field {
	return []flow.Field{
		{Name: "username", Required: true},
		{Name: "password", Required: true, Secret: true},
	}
}

// Step advances the flow. The whole wizard is one credentials form.
func (f *ConfigFlow) Step(ctx context.Context, fc *flow.Context, stepID string, input map[string]string) flow.Result {
	if stepID != flow.StepUser {
		return fc.Abort("unknown_step")
	}
	if input == nil {
		return fc.ShowForm(flow.StepUser, credentialsSchema(), nil)
	}

	username := strings.TrimSpace(input["username"])
	password := input["password"]
	if username == "" || password == "" {
		return fc.ShowForm(flow.StepUser, credentialsSchema(), map[string]string{"base": "invalid_auth"})
	}

	if err := fc.SetUniqueID(ctx, strings.ToLower(username)); err != nil {
		if errors.Is(err, flow.ErrAlreadyConfigured) {
			return fc.Abort(flow.ReasonAlreadyConfigured)
		}
		return fc.ShowForm(flow.StepUser, credentialsSchema(), map[string]string{"base": "unknown"})
	}

	if err := f.newAuth(username, password).Authenticate(ctx); err != nil {
		code := "cannot_connect"
		if errors.Is(err, ErrAuth) {
			code = "invalid_auth"
		}
		return fc.ShowForm(flow.StepUser, credentialsSchema(), map[string]string{"base": code})
	}

	return fc.CreateEntry(ctx, username, map[string]any{
		"username": username,
		"password": password,
	})
}
